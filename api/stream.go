package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/flowkit/sse"
)

// stream serves lifecycle events. ?topic takes a glob such as pipeline:*.
func (h *Handler) stream(c *gin.Context) {
	sse.ServeSSE(h.hub, c.Writer, c.Request, uuid.NewString(), c.Query("topic"))
}
