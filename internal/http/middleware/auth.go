package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-portal/internal/interface/http/response"
	"github.com/ignatzorin/proposal-portal/internal/service"
)

// ContextOwnerIDKey ключ ID владельца в gin.Context.
const ContextOwnerIDKey = "user_id"

// AuthMiddleware проверяет JWT access токен владельца.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return authenticate(tokens, false)
}

// WSAuthMiddleware то же, но браузер не может передать заголовок при upgrade,
// поэтому токен принимается и из query-параметра token.
func WSAuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return authenticate(tokens, true)
}

func authenticate(tokens *service.TokenManager, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && allowQuery {
			raw = c.Query("token")
		}
		if raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		ownerID, err := tokens.ParseAccess(raw)
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextOwnerIDKey, ownerID)
		c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
