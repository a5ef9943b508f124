package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docproc/internal/shared/telemetry"
)

// Context keys handlers set so the request log can carry them.
const (
	UserIDKey       = "userId"
	DocumentTypeKey = "documentType"
	FailedStageKey  = "failedStage"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if v := c.GetString(UserIDKey); v != "" {
			fields["user_id"] = v
		}
		if v := c.GetString(DocumentTypeKey); v != "" {
			fields["document_type"] = v
		}
		if v := c.GetString(FailedStageKey); v != "" {
			fields["failed_stage"] = v
		}
		telemetry.Info("request.complete", fields)
	}
}
