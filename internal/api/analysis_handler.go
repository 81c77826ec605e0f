// Package api contains the HTTP handlers for the analysis service: task
// enqueueing, result retrieval, worker introspection, the lesson webhook,
// and admin authentication.
package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/api/shared"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/service"
)

// AnalysisHandler handles task enqueueing and result retrieval.
type AnalysisHandler struct {
	service *service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(svc *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: svc}
}

// EnqueueTask handles POST /api/analysis/tasks. It responds 202 when a new
// task was queued and 200 when the request was deduplicated against an
// existing live task; the body shape is identical either way.
func (h *AnalysisHandler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	var req EnqueueTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	lessonID, err := uuid.Parse(req.LessonID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "lesson_id has invalid format")
		return
	}

	task, created, err := h.service.QueueTask(r.Context(), lessonID,
		domain.TaskType(req.TaskType), req.Priority, req.Metadata, "api")
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "failed to enqueue task",
				"error", err,
				"lesson_id", lessonID)
			shared.RespondWithError(w, r, status, "Failed to enqueue task")
			return
		}
		shared.RespondWithError(w, r, status, "Invalid task request")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	shared.RespondWithJSON(w, r, status, EnqueueTaskResponse{Task: task, Created: created})
}

// GetResult handles GET /api/lessons/{lessonID}/analysis.
func (h *AnalysisHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	lessonID, err := getPathUUID(r, "lessonID")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.GetResult(r.Context(), lessonID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusNotFound {
			shared.RespondWithError(w, r, status, "No analysis result for lesson")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get analysis result",
			"error", err,
			"lesson_id", lessonID)
		shared.RespondWithError(w, r, status, "Failed to get analysis result")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetTask handles GET /api/analysis/tasks/{taskID}, for status polling.
func (h *AnalysisHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "taskID")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusNotFound {
			shared.RespondWithError(w, r, status, "Task not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get task",
			"error", err,
			"task_id", taskID)
		shared.RespondWithError(w, r, status, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}
