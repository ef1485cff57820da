package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "facilityops/lottery/pkg/jwt"
	"facilityops/lottery/pkg/response"
)

const ContextKeyUserClaims = "user_claims"

// JWTAuth accepts a bearer access token, or an access_token query parameter
// for EventSource clients that cannot set headers.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("access_token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization format")
				c.Abort()
				return
			}
			token = parts[1]
		}
		if token == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserClaims, claims)
		c.Next()
	}
}
