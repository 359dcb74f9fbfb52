package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casecruncher/internal/domain/entity"
	"casecruncher/internal/domain/usecase"
)

type JobService interface {
	Submit(ctx context.Context, caseStudyInput string, quickMode bool) (usecase.SubmitResponse, error)
	GetStatus(ctx context.Context, sessionID string) (entity.Job, error)
	PostCommand(ctx context.Context, sessionID, command, source string) (bool, error)
	ListFiles(ctx context.Context, sessionID string) ([]entity.ArtifactDescriptor, error)
}

type JobHandler struct {
	Service JobService

	// PollInterval paces the stream endpoint; one snapshot per tick.
	PollInterval time.Duration
}

func NewJobHandler(s JobService) *JobHandler {
	return &JobHandler{
		Service:      s,
		PollInterval: time.Second,
	}
}

func (h *JobHandler) Register(g *gin.RouterGroup) {
	g.POST("/jobs", h.CreateJob)
	g.GET("/jobs/:sessionId", h.GetStatus)
	g.POST("/jobs/:sessionId/commands", h.PostCommand)
	g.GET("/jobs/:sessionId/stream", h.Stream)
	g.GET("/jobs/:sessionId/files", h.ListFiles)
}

type createJobRequest struct {
	CaseStudyInput string `json:"caseStudyInput"`
	QuickMode      bool   `json:"quickMode"`
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.Service.Submit(c.Request.Context(), req.CaseStudyInput, req.QuickMode)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) GetStatus(c *gin.Context) {
	job, err := h.Service.GetStatus(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type postCommandRequest struct {
	Command string `json:"command"`
}

func (h *JobHandler) PostCommand(c *gin.Context) {
	var req postCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	delivered, err := h.Service.PostCommand(c.Request.Context(), c.Param("sessionId"), req.Command, "api")
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !delivered {
		// accepted locally, delivery to the worker not guaranteed
		c.JSON(http.StatusAccepted, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Stream serves Job snapshots over SSE at a fixed cadence until the job
// reaches a terminal state or the client goes away. Subscribers are
// fully independent; each runs its own poll loop.
func (h *JobHandler) Stream(c *gin.Context) {
	sessionID := c.Param("sessionId")

	job, err := h.Service.GetStatus(c.Request.Context(), sessionID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if done := writeFrame(c, flusher, job); done {
		return
	}

	ticker := time.NewTicker(h.PollInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := h.Service.GetStatus(ctx, sessionID)
			if err != nil {
				return
			}
			if done := writeFrame(c, flusher, job); done {
				return
			}
		}
	}
}

// writeFrame emits one snapshot and reports whether the stream is over.
func writeFrame(c *gin.Context, flusher http.Flusher, job entity.Job) bool {
	payload, err := json.Marshal(job)
	if err != nil {
		return true
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	flusher.Flush()
	return job.Status.IsTerminal()
}

func (h *JobHandler) ListFiles(c *gin.Context) {
	files, err := h.Service.ListFiles(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		var cerr *entity.ConfigurationError
		if errors.As(err, &cerr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact store not configured", "missing": cerr.Missing})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if files == nil {
		files = []entity.ArtifactDescriptor{}
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *JobHandler) renderError(c *gin.Context, err error) {
	var (
		verr *entity.ValidationError
		cerr *entity.ConfigurationError
		nerr *entity.NotFoundError
		terr *entity.TransportError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing required configuration", "missing": cerr.Missing})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.As(err, &terr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": terr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
