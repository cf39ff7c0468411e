// Package api exposes the job control plane over HTTP, grounded on the
// viewra's transcodingmodule/api package: one handler struct wrapping the
// service layer, gin.RouterGroup-scoped routes, gin.H JSON error bodies.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/mantonx/transcodecore/internal/core/progress"
)

// Controller is the subset of controller.Controller the HTTP layer needs.
type Controller interface {
	Enqueue(cfg model.JobConfig) (string, error)
	Cancel(jobID string) error
	Retry(jobID string) error
	Status(jobID string) (model.JobRecord, error)
	List() ([]model.JobRecord, error)
}

// Handler implements the job control-plane routes.
type Handler struct {
	controller Controller
	hub        *progress.Hub
}

func NewHandler(controller Controller, hub *progress.Hub) *Handler {
	return &Handler{controller: controller, hub: hub}
}

// RegisterRoutes wires every route onto router, mirroring viewra's
// RegisterRoutes(router, handler) top-level wiring function.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	jobs := router.Group("/api/v1/jobs")
	{
		jobs.POST("", h.CreateJob)
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.POST("/:id/cancel", h.CancelJob)
		jobs.POST("/:id/retry", h.RetryJob)
		jobs.GET("/:id/progress", h.StreamProgress)
	}
}

// CreateJob handles POST /api/v1/jobs.
func (h *Handler) CreateJob(c *gin.Context) {
	var cfg model.JobConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.controller.Enqueue(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	records, err := h.controller.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.controller.Status(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
func (h *Handler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.controller.Cancel(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// RetryJob handles POST /api/v1/jobs/:id/retry.
func (h *Handler) RetryJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.controller.Retry(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// StreamProgress handles GET /api/v1/jobs/:id/progress, upgrading to a
// websocket carrying internal/core/progress.Hub events for this job.
func (h *Handler) StreamProgress(c *gin.Context) {
	id := c.Param("id")
	if err := h.hub.Subscribe(c.Writer, c.Request, id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
}
