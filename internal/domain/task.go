package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of an analysis task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskType identifies which analysis routine a task runs
type TaskType string

// Possible task type values
const (
	TaskTypeSummary       TaskType = "summary"
	TaskTypeVideoAnalysis TaskType = "video_analysis"
	TaskTypeFullAnalysis  TaskType = "full_analysis"
)

// Scheduling defaults
const (
	// DefaultPriority is the mid-range priority assigned when the caller
	// does not specify one. Lower values dispatch first.
	DefaultPriority = 5

	// DefaultMaxRetries bounds how many times a failing task is retried
	// before it is marked failed terminally.
	DefaultMaxRetries = 3
)

// AnalysisTask represents one queued unit of analysis work, scoped to a
// single lesson and a single task type. It is the unit of work and the
// source of truth for status and retry state.
type AnalysisTask struct {
	ID         uuid.UUID  `json:"id"`
	LessonID   uuid.UUID  `json:"lesson_id"`
	TaskType   TaskType   `json:"task_type"`
	Priority   int        `json:"priority"`
	Status     TaskStatus `json:"status"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`

	// Last-failure diagnostics, cleared on success.
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorStack   string `json:"error_stack,omitempty"`

	// ScheduledAt is the earliest time the task becomes eligible for
	// pickup; nil means eligible immediately.
	ScheduledAt         *time.Time `json:"scheduled_at,omitempty"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`

	CreatedBy string         `json:"created_by,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAnalysisTask creates a new AnalysisTask for the given lesson and task
// type. It generates a new UUID, applies the scheduling defaults, sets the
// status to pending, and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewAnalysisTask(
	lessonID uuid.UUID,
	taskType TaskType,
	priority int,
	metadata map[string]any,
	createdBy string,
) (*AnalysisTask, error) {
	if priority <= 0 {
		priority = DefaultPriority
	}

	now := time.Now().UTC()
	task := &AnalysisTask{
		ID:         uuid.New(),
		LessonID:   lessonID,
		TaskType:   taskType,
		Priority:   priority,
		Status:     TaskStatusPending,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		Metadata:   metadata,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the AnalysisTask has valid data.
// Returns an error if any field fails validation.
func (t *AnalysisTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.LessonID == uuid.Nil {
		return ErrEmptyLessonID
	}

	if !IsValidTaskType(t.TaskType) {
		return ErrInvalidTaskType
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.Priority <= 0 {
		return ErrInvalidPriority
	}

	if t.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}

	return nil
}

// IsLive reports whether the task still occupies the per-lesson live slot,
// i.e. it is pending or processing. At most one live task may exist per
// lesson at a time.
func (t *AnalysisTask) IsLive() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusProcessing
}

// IsValidTaskType checks if the given type is a known TaskType.
func IsValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeSummary, TaskTypeVideoAnalysis, TaskTypeFullAnalysis:
		return true
	default:
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
