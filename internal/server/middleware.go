package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"club-registration/internal/apperr"
	"club-registration/internal/util"
)

const (
	requestIDKey      = "request_id"
	requestIDHeader   = "X-Request-ID"
	adminSecretHeader = "X-Admin-Secret"
	// longer ids from clients are replaced to keep log lines bounded
	requestIDMaxLen = 64
)

// RequestID reads X-Request-ID or generates one, stores it on the context
// and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.New().String()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one access log line per request, leveled by status.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", fields...)
		case status >= 400:
			logger.Warn("client error", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// BodyLimit caps request bodies at maxBytes. Reads past the limit fail
// with *http.MaxBytesError.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RequireAdminSecret rejects requests whose X-Admin-Secret does not match
// secret. An empty secret rejects everything.
func RequireAdminSecret(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !util.SecretEqual(c.GetHeader(adminSecretHeader), secret) {
			logger.Warn("admin request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(requestIDKey)),
			)
			writeError(c, logger, apperr.ErrUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", adminSecretHeader, requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	var explicit []string
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			explicit = nil
			break
		}
		if o != "" {
			explicit = append(explicit, o)
		}
	}
	if len(explicit) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = explicit
	}
	return cors.New(cfg)
}
