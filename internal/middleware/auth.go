package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the authenticated user's id.
const UserIDKey = "user_id"

// AuthMiddleware validates the bearer token and sets the user id in the
// gin context. Requests without a valid token are rejected.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := userIDFromRequest(c, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the user id when a valid bearer token is
// present, so public reads can attach the viewer's own vote, and lets the
// request through anonymously otherwise.
func OptionalAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := userIDFromRequest(c, secret); err == nil {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id from the gin context, or ""
// for anonymous requests.
func UserID(c *gin.Context) string {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return ""
	}
	userID, _ := value.(string)
	return userID
}

func userIDFromRequest(c *gin.Context, secret []byte) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization format")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return userID, nil
}
