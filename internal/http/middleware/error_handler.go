package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/interface/http/response"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// ErrorHandler отвечает за ошибки, добавленные через c.Error, если обработчик сам ничего не записал.
// Внутренние причины в ответ не попадают: наружу уходит только код и сообщение AppError.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		entry := logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   apperror.CodeOf(err),
		}).WithError(err)
		if apperror.CodeOf(err) == apperror.ErrCodeInternal || apperror.CodeOf(err) == apperror.ErrCodeDatabaseError {
			entry.Error("Request error")
		} else {
			entry.Debug("Request error")
		}

		response.Error(c, err)
	}
}
