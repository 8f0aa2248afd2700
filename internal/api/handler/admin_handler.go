package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin operations.
type AdminHandler struct {
	runner  *service.RebuildRunner
	baseCtx context.Context

	// Rebuild job state
	mu        sync.RWMutex
	isRunning bool
	done      atomic.Int64
	total     atomic.Int64
	wg        sync.WaitGroup
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - baseCtx: lifetime of background rebuilds; cancel it on shutdown.
//   - runner: rebuild runner.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(baseCtx context.Context, runner *service.RebuildRunner) *AdminHandler {
	return &AdminHandler{runner: runner, baseCtx: baseCtx}
}

// RebuildStatusResponse represents the rebuild status.
type RebuildStatusResponse struct {
	IsRunning bool               `json:"is_running"`
	Done      int64              `json:"done"`
	Total     int64              `json:"total"`
	LastJob   *domain.RebuildJob `json:"last_job,omitempty"`
}

// TriggerRebuild starts a background gallery rebuild.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerRebuild(c *gin.Context) {
	ctx := c.Request.Context()

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Rebuild request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Rebuild is already running"})
		return
	}
	h.isRunning = true
	h.done.Store(0)
	h.total.Store(0)
	h.wg.Add(1)
	h.mu.Unlock()

	// Keep the request's log fields but not its cancellation.
	jobCtx := logger.FromContext(ctx).WithContext(h.baseCtx)
	go h.run(jobCtx)

	logger.CtxInfo(ctx, "Rebuild started: client_ip=%s", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{"message": "Rebuild started"})
}

func (h *AdminHandler) run(ctx context.Context) {
	defer h.wg.Done()

	start := time.Now()
	job, err := h.runner.Run(ctx, "api", func(done, total int64) {
		h.done.Store(done)
		h.total.Store(total)
	})

	h.mu.Lock()
	h.isRunning = false
	h.mu.Unlock()

	entry := logger.With(logger.Fields{}).WithDuration(time.Since(start)).WithStatus(string(job.Status))
	if err != nil {
		entry.Error(ctx, "Rebuild failed: error=%v", err)
		return
	}
	entry.Info(ctx, "Rebuild completed: total=%d, encoded=%d, skipped=%d, faces=%d",
		job.Total, job.Encoded, job.Skipped, job.Faces)
}

// GetRebuildStatus returns the current rebuild status and the last job.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) GetRebuildStatus(c *gin.Context) {
	h.mu.RLock()
	resp := RebuildStatusResponse{
		IsRunning: h.isRunning,
		Done:      h.done.Load(),
		Total:     h.total.Load(),
	}
	h.mu.RUnlock()

	job, err := h.runner.Latest(c.Request.Context())
	switch {
	case err == nil:
		resp.LastJob = job
	case !errors.Is(err, domain.ErrNotFound):
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Wait blocks until a running rebuild returns.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}
