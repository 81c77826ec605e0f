package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/api/shared"
	"github.com/lessonworks/analysis-api/internal/events"
)

// HookHandler receives lesson change webhooks from the main application
// and turns them into lesson events.
type HookHandler struct {
	emitter events.EventEmitter
}

// NewHookHandler creates a new HookHandler.
func NewHookHandler(emitter events.EventEmitter) *HookHandler {
	return &HookHandler{emitter: emitter}
}

// LessonHook handles POST /api/hooks/lesson. Handler failures are logged
// but still acknowledged with 202: the caller's lesson save must never
// fail because analysis queueing hiccuped.
func (h *HookHandler) LessonHook(w http.ResponseWriter, r *http.Request) {
	var req LessonHookRequest
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

	event, err := events.NewLessonEvent(lessonID, events.LessonAction(req.Action),
		req.ContentChanged, req.MediaChanged)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid lesson event")
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		slog.WarnContext(r.Context(), "lesson hook handler failed",
			"error", err,
			"lesson_id", lessonID,
			"action", req.Action)
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}
