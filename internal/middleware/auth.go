package middleware

import (
	"strings"

	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyAppID is the key for the app scope in gin context
	ContextKeyAppID = "app_id"

	// tokenQueryParam carries the token where headers cannot be set,
	// e.g. the browser WebSocket handshake
	tokenQueryParam = "token"
)

// AuthMiddleware creates a JWT authentication middleware
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization")
			c.Abort()
			return
		}

		// Validate token
		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		// Set user info in context
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyAppID, claims.AppID)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query(tokenQueryParam)
		return token, token != ""
	}

	// Check Bearer prefix
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID gets the user ID from the gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GetKey gets the document scope of the signed-in user
func GetKey(c *gin.Context) store.Key {
	return store.Key{AppID: c.GetString(ContextKeyAppID), UserID: c.GetString(ContextKeyUserID)}
}
