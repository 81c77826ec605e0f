package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
)

// TaskStore defines the interface for persisting analysis tasks.
// It is the source of truth for task status and retry state.
type TaskStore interface {
	// Enqueue inserts the task unless a live (pending or processing) task
	// already exists for the same lesson, in which case the existing task
	// is returned unchanged and created is false. The uniqueness check is
	// a single atomic conditional insert, so concurrent callers cannot
	// create duplicates.
	Enqueue(ctx context.Context, task *domain.AnalysisTask) (existing *domain.AnalysisTask, created bool, err error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error)

	// PickEligible selects up to limit tasks that are pending, still have
	// retry budget, and are past their scheduled_at time (or have none),
	// ordered by priority ascending then created_at ascending. When
	// taskTypes is non-empty the selection is restricted to those types.
	PickEligible(ctx context.Context, limit int, taskTypes ...domain.TaskType) ([]*domain.AnalysisTask, error)

	// MarkProcessing atomically claims a pending task, stamping
	// processing_started_at. Returns ErrNotClaimed if the task is no
	// longer pending, so concurrent schedulers cannot double-dispatch.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkCompleted marks the task completed, stamps processed_at, and
	// clears the failure diagnostics.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailedForRetry puts the task back to pending with the retry
	// count incremented, records the error, and defers the next pickup
	// until nextScheduledAt.
	MarkFailedForRetry(ctx context.Context, id uuid.UUID, taskErr error, nextScheduledAt time.Time) error

	// MarkFailedTerminal marks the task failed permanently and records the
	// error. A terminally failed task is never eligible again.
	MarkFailedTerminal(ctx context.Context, id uuid.UUID, taskErr error) error

	// ReclaimStuck resets tasks left in processing longer than olderThan
	// back to pending so a crashed worker's tasks are revisited.
	// Returns the number of tasks reclaimed.
	ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error)
}
