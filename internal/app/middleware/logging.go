package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kidpech/authbridge/internal/app/diagnostics"
	"github.com/kidpech/authbridge/internal/infrastructure/logging"
	"github.com/kidpech/authbridge/internal/infrastructure/monitoring"
	"github.com/kidpech/authbridge/pkg/response"
)

// RequestLogger logs request info and records metrics.
func RequestLogger(logger *zap.Logger, buffer *diagnostics.LogBuffer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		id := c.GetString(response.RequestIDContextKey)
		log := logging.WithRequestID(logger, id)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("status", status),
			zap.Duration("latency", latency),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		log.Info("request", fields...)
		if buffer != nil {
			buffer.Append(time.Now().UTC().Format(time.RFC3339) + " " + c.Request.Method + " " + path + " -> " + status)
		}
		monitoring.ObserveRequest(path, c.Request.Method, status, latency.Seconds())
	}
}
