package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// Ключи контекста, выставляемые после успешной аутентификации
const (
	ContextUserIDKey  = "user_id"
	ContextIsAdminKey = "is_admin"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов.
// Идентичность пользователя для этого сервиса непрозрачна: из токена
// берется только числовой ID и признак администратора.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware создает новый middleware с заданным HMAC-секретом
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// RequireAuth проверяет, аутентифицирован ли пользователь
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			c.Abort()
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			c.Abort()
			return
		}

		// user_id сериализуется в JSON как число с плавающей точкой
		rawUserID, ok := claims["user_id"].(float64)
		if !ok || rawUserID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token does not carry a valid user id", "error_type": "token_invalid"})
			c.Abort()
			return
		}

		isAdmin, _ := claims["is_admin"].(bool)

		c.Set(ContextUserIDKey, uint(rawUserID))
		c.Set(ContextIsAdminKey, isAdmin)

		c.Next()
	}
}

// RequireAdmin пропускает только администраторов. Должен стоять после RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get(ContextIsAdminKey)
		if !exists || isAdmin != true {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required", "error_type": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserIDFromContext возвращает ID аутентифицированного пользователя из контекста
func UserIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}
