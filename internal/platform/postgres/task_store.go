package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/platform/logger"
	"github.com/lessonworks/analysis-api/internal/store"
)

// PostgreSQL error codes
const pgUniqueViolationCode = "23505"

// taskColumns is the column list shared by every task SELECT.
const taskColumns = `id, lesson_id, task_type, priority, status, retry_count, max_retries,
	error_message, error_stack, scheduled_at, processing_started_at, processed_at,
	created_by, metadata, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Enqueue implements store.TaskStore.Enqueue.
// The insert conflicts against a partial unique index on
// (lesson_id) WHERE status IN ('pending', 'processing'), which makes the
// "no live task exists" check atomic against concurrent callers. When the
// insert is suppressed, the existing live task is returned unchanged.
func (s *PostgresTaskStore) Enqueue(
	ctx context.Context,
	task *domain.AnalysisTask,
) (*domain.AnalysisTask, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during enqueue",
			slog.String("error", err.Error()),
			slog.String("lesson_id", task.LessonID.String()))
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	metadata, err := marshalMetadata(task.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal task metadata: %w", err)
	}

	query := `
		INSERT INTO analysis_tasks
			(id, lesson_id, task_type, priority, status, retry_count, max_retries,
			 scheduled_at, created_by, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (lesson_id) WHERE status IN ('pending', 'processing') DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.LessonID,
		task.TaskType,
		task.Priority,
		task.Status,
		task.RetryCount,
		task.MaxRetries,
		task.ScheduledAt,
		nullString(task.CreatedBy),
		metadata,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		// A unique violation can still surface when two inserts race the
		// same command; treat it the same as a suppressed insert.
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolationCode {
			log.Error("failed to enqueue task",
				slog.String("error", err.Error()),
				slog.String("lesson_id", task.LessonID.String()))
			return nil, false, err
		}
	} else {
		rowsAffected, raErr := result.RowsAffected()
		if raErr != nil {
			log.Error("failed to get rows affected",
				slog.String("error", raErr.Error()),
				slog.String("lesson_id", task.LessonID.String()))
			return nil, false, raErr
		}

		if rowsAffected == 1 {
			log.Info("task enqueued",
				slog.String("task_id", task.ID.String()),
				slog.String("lesson_id", task.LessonID.String()),
				slog.String("task_type", string(task.TaskType)),
				slog.Int("priority", task.Priority))
			return task, true, nil
		}
	}

	existing, err := s.getLiveByLessonID(ctx, task.LessonID)
	if err != nil {
		// The live task finished between our insert and the lookup. Retry
		// the enqueue once; a second conflict means a live task exists.
		if errors.Is(err, store.ErrTaskNotFound) {
			return s.Enqueue(ctx, task)
		}
		return nil, false, err
	}

	log.Debug("enqueue was idempotent, returning existing live task",
		slog.String("task_id", existing.ID.String()),
		slog.String("lesson_id", task.LessonID.String()))
	return existing, false, nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_tasks WHERE id = $1`, taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

// getLiveByLessonID returns the pending or processing task for a lesson.
func (s *PostgresTaskStore) getLiveByLessonID(
	ctx context.Context,
	lessonID uuid.UUID,
) (*domain.AnalysisTask, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analysis_tasks
		WHERE lesson_id = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at ASC
		LIMIT 1
	`, taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, lessonID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

// PickEligible implements store.TaskStore.PickEligible.
// Eligible means pending, retry budget left, and past scheduled_at (or
// never scheduled). FIFO within a priority band.
func (s *PostgresTaskStore) PickEligible(
	ctx context.Context,
	limit int,
	taskTypes ...domain.TaskType,
) ([]*domain.AnalysisTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return []*domain.AnalysisTask{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM analysis_tasks
		WHERE status = 'pending'
		  AND retry_count < max_retries
		  AND (scheduled_at IS NULL OR scheduled_at <= $1)
	`, taskColumns)
	args := []any{time.Now().UTC()}

	if len(taskTypes) > 0 {
		types := make([]string, len(taskTypes))
		for i, t := range taskTypes {
			types[i] = string(t)
		}
		query += ` AND task_type = ANY($2)`
		args = append(args, types)
	}

	query += fmt.Sprintf(` ORDER BY priority ASC, created_at ASC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query eligible tasks",
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.AnalysisTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return tasks, nil
}

// MarkProcessing implements store.TaskStore.MarkProcessing.
// The status predicate makes the claim atomic: of two concurrent claims
// only one sees a pending row.
func (s *PostgresTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_tasks
		SET status = 'processing', processing_started_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'pending'
	`

	result, err := s.db.ExecContext(ctx, query, now, id)
	if err != nil {
		log.Error("failed to mark task processing",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		log.Debug("task could not be claimed",
			slog.String("task_id", id.String()))
		return store.ErrNotClaimed
	}

	return nil
}

// MarkCompleted implements store.TaskStore.MarkCompleted.
func (s *PostgresTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_tasks
		SET status = 'completed', processed_at = $1, updated_at = $1,
		    error_message = NULL, error_stack = NULL
		WHERE id = $2
	`

	result, err := s.db.ExecContext(ctx, query, now, id)
	if err != nil {
		log.Error("failed to mark task completed",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	log.Info("task completed", slog.String("task_id", id.String()))
	return nil
}

// MarkFailedForRetry implements store.TaskStore.MarkFailedForRetry.
// The task goes back to pending with the retry count incremented and the
// next pickup deferred until nextScheduledAt.
func (s *PostgresTaskStore) MarkFailedForRetry(
	ctx context.Context,
	id uuid.UUID,
	taskErr error,
	nextScheduledAt time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_tasks
		SET status = 'pending', retry_count = retry_count + 1,
		    error_message = $1, error_stack = $2,
		    scheduled_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		errorMessage(taskErr),
		errorStack(taskErr),
		nextScheduledAt.UTC(),
		now,
		id,
	)
	if err != nil {
		log.Error("failed to mark task for retry",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	log.Warn("task scheduled for retry",
		slog.String("task_id", id.String()),
		slog.Time("next_attempt_at", nextScheduledAt))
	return nil
}

// MarkFailedTerminal implements store.TaskStore.MarkFailedTerminal.
func (s *PostgresTaskStore) MarkFailedTerminal(ctx context.Context, id uuid.UUID, taskErr error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_tasks
		SET status = 'failed', retry_count = max_retries,
		    error_message = $1, error_stack = $2,
		    processed_at = $3, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, errorMessage(taskErr), errorStack(taskErr), now, id)
	if err != nil {
		log.Error("failed to mark task terminally failed",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	log.Error("task failed terminally",
		slog.String("task_id", id.String()),
		slog.String("reason", errorMessage(taskErr)))
	return nil
}

// ReclaimStuck implements store.TaskStore.ReclaimStuck.
// A task stuck in processing past the threshold usually means the owning
// process died mid-task; reset it so it becomes eligible again.
func (s *PostgresTaskStore) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE analysis_tasks
		SET status = 'pending', processing_started_at = NULL,
		    error_message = 'reclaimed after being stuck in processing', updated_at = $1
		WHERE status = 'processing' AND processing_started_at < $2
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), cutoff)
	if err != nil {
		log.Error("failed to reclaim stuck tasks",
			slog.String("error", err.Error()))
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if rowsAffected > 0 {
		log.Warn("reclaimed stuck tasks", slog.Int64("count", rowsAffected))
	}
	return int(rowsAffected), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one analysis_tasks row in taskColumns order.
func scanTask(row rowScanner) (*domain.AnalysisTask, error) {
	var task domain.AnalysisTask
	var taskType, status string
	var errorMsg, errorStack, createdBy sql.NullString
	var scheduledAt, processingStartedAt, processedAt sql.NullTime
	var metadata []byte

	err := row.Scan(
		&task.ID,
		&task.LessonID,
		&taskType,
		&task.Priority,
		&status,
		&task.RetryCount,
		&task.MaxRetries,
		&errorMsg,
		&errorStack,
		&scheduledAt,
		&processingStartedAt,
		&processedAt,
		&createdBy,
		&metadata,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.TaskType = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	task.ErrorMessage = errorMsg.String
	task.ErrorStack = errorStack.String
	task.CreatedBy = createdBy.String
	if scheduledAt.Valid {
		t := scheduledAt.Time
		task.ScheduledAt = &t
	}
	if processingStartedAt.Valid {
		t := processingStartedAt.Time
		task.ProcessingStartedAt = &t
	}
	if processedAt.Valid {
		t := processedAt.Time
		task.ProcessedAt = &t
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &task.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task metadata: %w", err)
		}
	}

	return &task, nil
}

// marshalMetadata converts the metadata bag to JSONB, preserving NULL for
// an absent bag.
func marshalMetadata(metadata map[string]any) (any, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// errorMessage extracts the diagnostic message stored on failure.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// errorStack records the full wrapped error chain. Go errors carry no
// stack trace, so the %+v rendering of the chain is what we keep.
func errorStack(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
