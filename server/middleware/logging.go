package middleware

import (
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/logger"
)

// quietPaths are probed often and only logged on failure.
var quietPaths = []string{"/health", "/livez", "/version"}

// SlowRequest marks requests slower than this in the log.
const SlowRequest = 500 * time.Millisecond

// RequestLogger logs each request at a level derived from its status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path
		if status < 400 && slices.Contains(quietPaths, path) {
			return
		}

		latency := time.Since(start)
		fields := logger.Fields(
			"method", c.Request.Method,
			"path", path,
			logger.FieldStatus, status,
			logger.FieldDuration, latency.Milliseconds(),
			"client", c.ClientIP(),
			logger.FieldRequestID, c.GetString(RequestIDKey),
		)
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		if latency > SlowRequest {
			fields["slow"] = true
		}
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}

		switch {
		case status >= 500:
			log.Error("request completed", fields)
		case status >= 400:
			log.Warn("request completed", fields)
		default:
			log.Debug("request completed", fields)
		}
	}
}
