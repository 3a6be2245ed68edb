package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// AuthMiddleware handles authentication for protected routes
type AuthMiddleware struct {
	authService *AuthService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Required enforces authentication for routes
func (m *AuthMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.authenticate(c); ok {
			c.Next()
		}
	}
}

// RoleRequired enforces specific role for routes
func (m *AuthMiddleware) RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			if claims, ok = m.authenticate(c); !ok {
				return
			}
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions", "kind": "Forbidden"})
	}
}

// authenticate stores the token claims in c or aborts with 401
func (m *AuthMiddleware) authenticate(c *gin.Context) (*Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abort(c, "authorization header required")
		return nil, false
	}

	tokenString, ok := bearerToken(header)
	if !ok {
		abort(c, "invalid authorization format")
		return nil, false
	}

	claims, err := m.authService.ValidateToken(tokenString)
	if err != nil {
		m.authService.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Invalid token")
		msg := "invalid token"
		if errors.Is(err, ErrTokenExpired) {
			msg = "token expired"
		}
		abort(c, msg)
		return nil, false
	}

	c.Set(claimsKey, claims)
	return claims, true
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "kind": "Unauthorized"})
}

// GetClaims returns the authenticated claims from context
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// GetUsername returns the authenticated username from context
func GetUsername(c *gin.Context) (string, bool) {
	claims, ok := GetClaims(c)
	if !ok {
		return "", false
	}
	return claims.Username, true
}
