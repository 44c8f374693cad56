package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monay-auth/internal/apperr"
	"monay-auth/internal/service"
)

// writeError traduce el Kind del error a un status HTTP. Los rechazos de negocio no pasan
// por aca: viajan como {"status": ...} con 200.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	case errors.Is(err, service.ErrJWTInvalid), errors.Is(err, service.ErrJWTExpired), errors.Is(err, service.ErrSessionRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case apperr.KindValidationFailed:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func writeStatus(c *gin.Context, st service.Status) {
	c.JSON(http.StatusOK, gin.H{"status": st})
}
