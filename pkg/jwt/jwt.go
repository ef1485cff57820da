package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidIssuer = errors.New("invalid issuer")
	ErrMissingUser   = errors.New("token has no subject")
)

// Claims extends jwt.RegisteredClaims with the operator's display name.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// UserID is the acting user recorded on sessions and packages.
func (c *Claims) UserID() string { return c.Subject }

type Manager struct {
	signingKey     []byte
	issuer         string
	accessTokenTTL time.Duration
}

func NewManager(signingKey string, issuer string, accessTTL time.Duration) *Manager {
	return &Manager{
		signingKey:     []byte(signingKey),
		issuer:         issuer,
		accessTokenTTL: accessTTL,
	}
}

// GenerateAccessToken creates a signed HS256 access token for userID.
func (m *Manager) GenerateAccessToken(userID, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenTTL)),
			ID:        uuid.New().String(),
		},
		Name: name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses and validates a token string, returning claims.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != m.issuer {
		return nil, ErrInvalidIssuer
	}
	if claims.Subject == "" {
		return nil, ErrMissingUser
	}
	return claims, nil
}
