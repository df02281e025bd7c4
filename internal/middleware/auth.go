package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JunoAX/familytasks-go/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	authUserKey   = "auth_user_id"
	authFamilyKey = "auth_family_id"
	authEmailKey  = "auth_email"
)

// RequireAuth validates the bearer token issued by identity sync and sets user context
func RequireAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Check for Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format. Use: Bearer <token>"})
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(authUserKey, claims.UserID)
		c.Set(authFamilyKey, claims.FamilyID)
		c.Set(authEmailKey, claims.Email)
		Logger(c).Debug("request authenticated", "user_id", claims.UserID)

		c.Next()
	}
}

// GetAuthUserID retrieves the authenticated user ID from context
func GetAuthUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(authUserKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetAuthFamilyID retrieves the authenticated user's family ID from context
func GetAuthFamilyID(c *gin.Context) (int64, bool) {
	familyID, exists := c.Get(authFamilyKey)
	if !exists {
		return 0, false
	}
	id, ok := familyID.(int64)
	return id, ok
}
