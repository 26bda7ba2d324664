package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/flowkit/logger"
)

// Request id header and gin context key.
const (
	RequestIDHeader = "X-Request-Id"
	RequestIDKey    = "request_id"
)

// RequestID propagates or generates an X-Request-Id and attaches it to the
// request context's log fields.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		ctx := logger.ContextWithFields(c.Request.Context(), logger.Fields(logger.FieldRequestID, id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
