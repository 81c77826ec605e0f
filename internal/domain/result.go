package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus represents the processing state of a lesson's analysis
// result, independent from the status of any single task.
type ResultStatus string

// Possible result status values
const (
	ResultStatusPending    ResultStatus = "pending"
	ResultStatusProcessing ResultStatus = "processing"
	ResultStatusCompleted  ResultStatus = "completed"
	ResultStatusFailed     ResultStatus = "failed"
)

// AnalysisContent holds the payload produced by an analysis routine. The
// queue subsystem treats these fields as opaque; only their presence or
// absence matters for scheduling decisions.
type AnalysisContent struct {
	Summary          string   `json:"summary,omitempty"`
	KeyPoints        []string `json:"key_points,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty"`
	EstimatedMinutes int      `json:"estimated_minutes,omitempty"`
	Transcript       string   `json:"transcript,omitempty"`
}

// IsEmpty reports whether the content carries no analysis output at all.
func (c AnalysisContent) IsEmpty() bool {
	return c.Summary == "" && len(c.KeyPoints) == 0 && c.Difficulty == "" &&
		c.EstimatedMinutes == 0 && c.Transcript == ""
}

// AnalysisResult is the at-most-one current analysis result per lesson,
// upserted as analyses run. Version is bumped every time a new analysis is
// requested so stale overwrites can be detected by consumers.
type AnalysisResult struct {
	ID       uuid.UUID    `json:"id"`
	LessonID uuid.UUID    `json:"lesson_id"`
	Status   ResultStatus `json:"status"`
	Version  int          `json:"version"`

	Content AnalysisContent `json:"content"`

	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAnalysisResult creates the initial pending result row for a lesson.
// It is created lazily on first task creation and never deleted by the
// queue subsystem.
func NewAnalysisResult(lessonID uuid.UUID) (*AnalysisResult, error) {
	if lessonID == uuid.Nil {
		return nil, ErrEmptyLessonID
	}

	now := time.Now().UTC()
	return &AnalysisResult{
		ID:        uuid.New(),
		LessonID:  lessonID,
		Status:    ResultStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks if the AnalysisResult has valid data.
func (r *AnalysisResult) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyResultID
	}

	if r.LessonID == uuid.Nil {
		return ErrEmptyLessonID
	}

	if !isValidResultStatus(r.Status) {
		return ErrInvalidResultStatus
	}

	if r.Version < 1 {
		return ErrInvalidResultVersion
	}

	return nil
}

// isValidResultStatus checks if the given status is a valid ResultStatus.
func isValidResultStatus(status ResultStatus) bool {
	switch status {
	case ResultStatusPending, ResultStatusProcessing, ResultStatusCompleted, ResultStatusFailed:
		return true
	default:
		return false
	}
}
