package api

import (
	"context"
	"net/http"

	"github.com/lessonworks/analysis-api/internal/api/shared"
	"github.com/lessonworks/analysis-api/internal/task"
)

// WorkerController is the scheduler surface the worker handlers need.
type WorkerController interface {
	// Status reports the scheduler's observable state.
	Status() task.WorkerStatus

	// TriggerDispatch forces a health probe and an immediate dispatch
	// tick, returning the fresh gate verdict.
	TriggerDispatch(ctx context.Context) (bool, error)
}

// WorkerHandler exposes worker introspection and the admin force-dispatch.
type WorkerHandler struct {
	worker WorkerController
}

// NewWorkerHandler creates a new WorkerHandler.
func NewWorkerHandler(worker WorkerController) *WorkerHandler {
	return &WorkerHandler{worker: worker}
}

// Status handles GET /api/worker/status.
func (h *WorkerHandler) Status(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.worker.Status())
}

// TriggerDispatch handles POST /api/admin/worker/dispatch.
func (h *WorkerHandler) TriggerDispatch(w http.ResponseWriter, r *http.Request) {
	available, err := h.worker.TriggerDispatch(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Worker is not running")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, DispatchResponse{
		Triggered:          true,
		InferenceAvailable: available,
	})
}
