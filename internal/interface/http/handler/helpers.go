package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/http/middleware"
)

func getOwnerID(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get(middleware.ContextOwnerIDKey)
	if !exists {
		return uuid.Nil, errors.New("user_id не найден в контексте")
	}

	ownerID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("некорректный формат user_id")
	}

	return ownerID, nil
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// clientInfo берёт IP и User-Agent из тела, если они переданы, иначе из самого запроса.
func clientInfo(c *gin.Context, ip, userAgent string) entity.ClientInfo {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = c.ClientIP()
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}
	return entity.ClientInfo{IP: ip, UserAgent: userAgent}
}
