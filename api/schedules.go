package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/workflow"
)

func (h *Handler) listSchedules(c *gin.Context) {
	server.RespondList(c, h.orch.Scheduler().List())
}

func (h *Handler) createSchedule(c *gin.Context) {
	var sched workflow.Schedule
	if err := bindOptional(c, &sched); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.orch.RegisterSchedule(&sched); err != nil {
		server.RespondWithError(c, err)
		return
	}
	stored, err := h.orch.Scheduler().Get(sched.ID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, stored)
}

func (h *Handler) getSchedule(c *gin.Context) {
	sched, err := h.orch.Scheduler().Get(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, sched)
}

func (h *Handler) deleteSchedule(c *gin.Context) {
	if err := h.orch.Scheduler().Unregister(c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

func (h *Handler) enableSchedule(c *gin.Context) {
	if err := h.orch.Scheduler().Enable(c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.getSchedule(c)
}

func (h *Handler) disableSchedule(c *gin.Context) {
	if err := h.orch.Scheduler().Disable(c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.getSchedule(c)
}

// triggerSchedule starts a job now, ignoring the trigger and gates, and
// answers before the job finishes.
func (h *Handler) triggerSchedule(c *gin.Context) {
	var req runRequest
	if err := bindOptional(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	job, err := h.orch.Scheduler().TriggerAsync(detached(c), c.Param("id"), req.Parameters, actor(c))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, job)
}

func (h *Handler) scheduleJobs(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.orch.Scheduler().Get(id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondList(c, h.orch.Scheduler().Jobs(id))
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.orch.Scheduler().GetJob(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, job)
}

func (h *Handler) cancelJob(c *gin.Context) {
	if err := h.orch.Scheduler().CancelJob(c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.getJob(c)
}

// emitEvent fires the event schedules listening for :name and returns the
// jobs it started.
func (h *Handler) emitEvent(c *gin.Context) {
	var req runRequest
	if err := bindOptional(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	jobs := h.orch.Scheduler().Emit(detached(c), c.Param("name"), req.Parameters)
	server.RespondAccepted(c, jobs)
}
