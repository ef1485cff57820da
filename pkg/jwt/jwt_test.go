package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", "lottery", time.Minute)

	token, err := m.GenerateAccessToken("u-42", "Dana")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.UserID())
	assert.Equal(t, "Dana", claims.Name)
}

func TestManager_Validate(t *testing.T) {
	m := NewManager("secret", "lottery", time.Minute)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "wrong key",
			token: func(t *testing.T) string {
				tok, err := NewManager("other", "lottery", time.Minute).GenerateAccessToken("u", "")
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				tok, err := NewManager("secret", "elsewhere", time.Minute).GenerateAccessToken("u", "")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrInvalidIssuer,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				tok, err := NewManager("secret", "lottery", -time.Minute).GenerateAccessToken("u", "")
				require.NoError(t, err)
				return tok
			},
		},
		{
			name: "no subject",
			token: func(t *testing.T) string {
				tok, err := m.GenerateAccessToken("", "")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrMissingUser,
		},
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not-a-token" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token(t))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
