package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/dag"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/workflow"
)

func (h *Handler) listWorkflows(c *gin.Context) {
	server.RespondList(c, h.orch.Engine().Definitions())
}

func (h *Handler) createWorkflow(c *gin.Context) {
	var def workflow.Definition
	if err := bindOptional(c, &def); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.orch.RegisterWorkflow(&def); err != nil {
		server.RespondWithError(c, err)
		return
	}
	stored, err := h.orch.Engine().Definition(def.ID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, stored)
}

func (h *Handler) getWorkflow(c *gin.Context) {
	def, err := h.orch.Engine().Definition(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, def)
}

func (h *Handler) deleteWorkflow(c *gin.Context) {
	if err := h.orch.UnregisterWorkflow(c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

// validation is the validate response: the DAG result plus, for valid
// definitions, the execution order and parallel levels.
type validation struct {
	dag.Result
	Order  []string   `json:"order,omitempty"`
	Levels [][]string `json:"levels,omitempty"`
}

func (h *Handler) validateWorkflow(c *gin.Context) {
	def, err := h.orch.Engine().Definition(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	out := validation{Result: dag.Validate(def)}
	if out.Valid {
		out.Order, _ = dag.TopologicalOrder(def)
		out.Levels, _ = dag.Levels(def)
	}
	server.RespondOK(c, out)
}

func (h *Handler) executeWorkflow(c *gin.Context) {
	var req runRequest
	if err := bindOptional(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	eng := h.orch.Engine()
	handle, err := eng.Start(detached(c), c.Param("id"), req.Parameters, actor(c))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	inst, err := eng.Instance(handle.InstanceID())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("instance started via api", logger.Fields(
		logger.FieldWorkflowID, inst.WorkflowID,
		logger.FieldInstanceID, inst.ID,
	))
	server.RespondAccepted(c, inst)
}
