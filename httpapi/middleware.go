package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"leaseflow/auth"
)

const (
	// ContextKeyUserID is the gin context key for the authenticated user id.
	ContextKeyUserID = "authUserID"
	// ContextKeyRole is the gin context key for the authenticated role.
	ContextKeyRole = "authRole"
)

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

// Authenticate extracts and validates the bearer token when present.
// Sets user id and role in context if valid.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			userID, role, err := verifier.VerifyToken(token)
			if err == nil {
				c.Set(ContextKeyUserID, userID)
				c.Set(ContextKeyRole, string(role))
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyUserID); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Bearer token required.",
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role differs.
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyRole) != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Insufficient role.",
			})
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user's id, empty when anonymous.
func CallerID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
