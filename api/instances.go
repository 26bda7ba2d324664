package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/server"
)

func (h *Handler) listInstances(c *gin.Context) {
	server.RespondList(c, h.orch.Engine().ListInstances(c.Query("workflow_id")))
}

func (h *Handler) getInstance(c *gin.Context) {
	inst, err := h.orch.Engine().Instance(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, inst)
}

func (h *Handler) pauseInstance(c *gin.Context) {
	h.transition(c, h.orch.Engine().Pause)
}

func (h *Handler) resumeInstance(c *gin.Context) {
	h.transition(c, h.orch.Engine().Resume)
}

func (h *Handler) cancelInstance(c *gin.Context) {
	h.transition(c, h.orch.Engine().Cancel)
}

// transition applies a lifecycle operation and answers with the instance.
func (h *Handler) transition(c *gin.Context, op func(instanceID string) error) {
	id := c.Param("id")
	if err := op(id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.getInstance(c)
}
