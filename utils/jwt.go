package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/annolab/annolab-platform/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

func ParseToken(tokenString string, config *config.EnvConfig) (*jwt.Token, error) {
	secret := []byte(config.JWT.SecretKey)
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
}

// GenerateToken signs an access token carrying the user's id and role.
func GenerateToken(userID uint, role string, config *config.EnvConfig) (string, error) {
	claims := jwt.MapClaims{
		"user_id": float64(userID),
		"role":    role,
		"exp":     time.Now().Add(time.Duration(config.JWT.Expire) * time.Second).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWT.SecretKey))
}

// InjectClaimsToContext validates the numeric user_id claim and stores the
// caller's identity on the gin context.
func InjectClaimsToContext(c *gin.Context, claims jwt.MapClaims) error {
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return errors.New("invalid user_id claim")
	}
	c.Set("user_id", uint(userID))

	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	} else {
		c.Set("role", "")
	}
	return nil
}

// GetUserIDFromContext returns the authenticated user id set by the auth
// middleware.
func GetUserIDFromContext(c *gin.Context) (uint, error) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, errors.New("user_id is missing from context")
	}
	userID, ok := v.(uint)
	if !ok || userID == 0 {
		return 0, errors.New("invalid user_id in context")
	}
	return userID, nil
}
