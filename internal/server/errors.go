package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"club-registration/internal/apperr"
)

// bind decodes and validates the JSON body, writing a 400 or 413 on failure.
func (h *httpHandler) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return false
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
	return false
}

// fail maps err onto a response. Store and configuration failures get the
// route's generic message; the detail only goes to the log.
func (h *httpHandler) fail(c *gin.Context, err error, generic string) {
	writeError(c, h.logger, err, generic)
}

func writeError(c *gin.Context, logger *zap.Logger, err error, generic string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, apperr.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		logger.Error(generic,
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Bool("store", apperr.IsStore(err)),
			zap.Bool("configuration", errors.Is(err, apperr.ErrConfiguration)),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": generic})
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), apperr.ErrValidation.Error()+": ")
	if msg == "" {
		return "Invalid request"
	}
	return msg
}
