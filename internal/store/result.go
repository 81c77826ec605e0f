package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
)

// AnalysisResultStore defines the interface for persisting the at-most-one
// current analysis result per lesson. Results are created lazily on first
// task creation and never deleted by the queue subsystem.
type AnalysisResultStore interface {
	// EnsureForLesson creates the pending result row for the lesson if it
	// does not exist yet; otherwise it bumps the version counter to mark
	// that a new analysis has been requested. Returns the current row.
	EnsureForLesson(ctx context.Context, lessonID uuid.UUID) (*domain.AnalysisResult, error)

	// GetByLessonID retrieves the result for a lesson.
	// Returns ErrResultNotFound if no result row exists yet.
	GetByLessonID(ctx context.Context, lessonID uuid.UUID) (*domain.AnalysisResult, error)

	// MarkProcessing flips the result to processing and stamps
	// processing_started_at.
	MarkProcessing(ctx context.Context, lessonID uuid.UUID) error

	// SaveCompleted upserts the analysis content, flips the status to
	// completed, stamps processing_completed_at and clears error_message.
	// Fields absent from content are left untouched so a partial analysis
	// (summary only, video only) does not erase earlier output.
	SaveCompleted(ctx context.Context, lessonID uuid.UUID, content domain.AnalysisContent) error

	// MarkFailed forces the result status to failed with the given
	// message, overriding any in-progress value. This is only called when
	// a task exhausts its retry budget.
	MarkFailed(ctx context.Context, lessonID uuid.UUID, message string) error
}

// LessonReader is the collaborator adapter through which analyzers obtain
// lesson content. The lessons table is owned by the main application.
type LessonReader interface {
	// GetLessonContent returns the analyzable view of a lesson.
	// Returns ErrLessonNotFound if the lesson does not exist.
	GetLessonContent(ctx context.Context, lessonID uuid.UUID) (*domain.LessonContent, error)
}
