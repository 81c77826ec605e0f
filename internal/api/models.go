package api

import "github.com/lessonworks/analysis-api/internal/domain"

// EnqueueTaskRequest is the payload for creating an analysis task.
type EnqueueTaskRequest struct {
	LessonID string         `json:"lesson_id" validate:"required,uuid"`
	TaskType string         `json:"task_type" validate:"required,oneof=summary video_analysis full_analysis"`
	Priority int            `json:"priority"  validate:"omitempty,gte=1,lte=10"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EnqueueTaskResponse reports the queued task. Created is false when the
// request was deduplicated against an existing live task for the lesson.
type EnqueueTaskResponse struct {
	Task    *domain.AnalysisTask `json:"task"`
	Created bool                 `json:"created"`
}

// LessonHookRequest is the webhook payload the main application sends
// when a lesson is created or updated.
type LessonHookRequest struct {
	LessonID       string `json:"lesson_id" validate:"required,uuid"`
	Action         string `json:"action"    validate:"required,oneof=created updated"`
	ContentChanged bool   `json:"content_changed"`
	MediaChanged   bool   `json:"media_changed"`
}

// LoginRequest carries the admin credential.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued access token.
type AuthResponse struct {
	Token string `json:"token"`
}

// DispatchResponse reports the outcome of a forced dispatch.
type DispatchResponse struct {
	Triggered          bool `json:"triggered"`
	InferenceAvailable bool `json:"inference_available"`
}
