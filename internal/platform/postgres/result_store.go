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
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/platform/logger"
	"github.com/lessonworks/analysis-api/internal/store"
)

// PostgresAnalysisResultStore implements the store.AnalysisResultStore
// interface using a PostgreSQL database as the storage backend.
type PostgresAnalysisResultStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAnalysisResultStore creates a new PostgreSQL implementation of
// the AnalysisResultStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAnalysisResultStore(db store.DBTX, logger *slog.Logger) *PostgresAnalysisResultStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAnalysisResultStore{
		db:     db,
		logger: logger.With(slog.String("component", "result_store")),
	}
}

// Ensure PostgresAnalysisResultStore implements store.AnalysisResultStore
var _ store.AnalysisResultStore = (*PostgresAnalysisResultStore)(nil)

// EnsureForLesson implements store.AnalysisResultStore.EnsureForLesson.
// The upsert keys on the lesson_id unique constraint: a fresh lesson gets a
// pending row at version 1, an existing lesson gets its version bumped to
// mark that a new analysis was requested.
func (s *PostgresAnalysisResultStore) EnsureForLesson(
	ctx context.Context,
	lessonID uuid.UUID,
) (*domain.AnalysisResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := domain.NewAnalysisResult(lessonID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO analysis_results (id, lesson_id, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lesson_id) DO UPDATE
		SET version = analysis_results.version + 1, updated_at = EXCLUDED.updated_at
		RETURNING id, lesson_id, status, version, summary, key_points, difficulty,
		          estimated_minutes, transcript, processing_started_at,
		          processing_completed_at, error_message, created_at, updated_at
	`

	row := s.db.QueryRowContext(
		ctx,
		query,
		result.ID,
		result.LessonID,
		result.Status,
		result.Version,
		result.CreatedAt,
		result.UpdatedAt,
	)

	current, err := scanResult(row)
	if err != nil {
		log.Error("failed to ensure analysis result",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return nil, err
	}

	log.Debug("analysis result ensured",
		slog.String("lesson_id", lessonID.String()),
		slog.Int("version", current.Version))
	return current, nil
}

// GetByLessonID implements store.AnalysisResultStore.GetByLessonID.
func (s *PostgresAnalysisResultStore) GetByLessonID(
	ctx context.Context,
	lessonID uuid.UUID,
) (*domain.AnalysisResult, error) {
	query := `
		SELECT id, lesson_id, status, version, summary, key_points, difficulty,
		       estimated_minutes, transcript, processing_started_at,
		       processing_completed_at, error_message, created_at, updated_at
		FROM analysis_results
		WHERE lesson_id = $1
	`

	result, err := scanResult(s.db.QueryRowContext(ctx, query, lessonID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		return nil, err
	}

	return result, nil
}

// MarkProcessing implements store.AnalysisResultStore.MarkProcessing.
func (s *PostgresAnalysisResultStore) MarkProcessing(ctx context.Context, lessonID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_results
		SET status = 'processing', processing_started_at = $1,
		    error_message = NULL, updated_at = $1
		WHERE lesson_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, now, lessonID)
	if err != nil {
		log.Error("failed to mark result processing",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrResultNotFound
	}

	return nil
}

// SaveCompleted implements store.AnalysisResultStore.SaveCompleted.
// COALESCE keeps earlier output in place when the new content omits a
// field, so a summary-only run does not erase a previous video transcript.
func (s *PostgresAnalysisResultStore) SaveCompleted(
	ctx context.Context,
	lessonID uuid.UUID,
	content domain.AnalysisContent,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_results
		SET status = 'completed',
		    summary = COALESCE(NULLIF($1, ''), summary),
		    key_points = COALESCE($2, key_points),
		    difficulty = COALESCE(NULLIF($3, ''), difficulty),
		    estimated_minutes = COALESCE(NULLIF($4, 0), estimated_minutes),
		    transcript = COALESCE(NULLIF($5, ''), transcript),
		    processing_completed_at = $6,
		    error_message = NULL,
		    updated_at = $6
		WHERE lesson_id = $7
	`

	// key_points is stored as JSONB; NULL keeps the previous value.
	var keyPoints any
	if len(content.KeyPoints) > 0 {
		encoded, err := json.Marshal(content.KeyPoints)
		if err != nil {
			return fmt.Errorf("failed to marshal key points: %w", err)
		}
		keyPoints = encoded
	}

	result, err := s.db.ExecContext(
		ctx,
		query,
		content.Summary,
		keyPoints,
		content.Difficulty,
		content.EstimatedMinutes,
		content.Transcript,
		now,
		lessonID,
	)
	if err != nil {
		log.Error("failed to save completed analysis",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrResultNotFound
	}

	log.Info("analysis result completed",
		slog.String("lesson_id", lessonID.String()))
	return nil
}

// MarkFailed implements store.AnalysisResultStore.MarkFailed.
func (s *PostgresAnalysisResultStore) MarkFailed(
	ctx context.Context,
	lessonID uuid.UUID,
	message string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE analysis_results
		SET status = 'failed', error_message = $1,
		    processing_completed_at = $2, updated_at = $2
		WHERE lesson_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, message, now, lessonID)
	if err != nil {
		log.Error("failed to mark result failed",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrResultNotFound
	}

	log.Warn("analysis result marked failed",
		slog.String("lesson_id", lessonID.String()),
		slog.String("message", message))
	return nil
}

// scanResult reads one analysis_results row.
func scanResult(row rowScanner) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	var status string
	var summary, difficulty, transcript, errorMsg sql.NullString
	var estimatedMinutes sql.NullInt64
	var keyPoints []byte
	var processingStartedAt, processingCompletedAt sql.NullTime

	err := row.Scan(
		&result.ID,
		&result.LessonID,
		&status,
		&result.Version,
		&summary,
		&keyPoints,
		&difficulty,
		&estimatedMinutes,
		&transcript,
		&processingStartedAt,
		&processingCompletedAt,
		&errorMsg,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	result.Status = domain.ResultStatus(status)
	result.Content = domain.AnalysisContent{
		Summary:          summary.String,
		Difficulty:       difficulty.String,
		EstimatedMinutes: int(estimatedMinutes.Int64),
		Transcript:       transcript.String,
	}
	if len(keyPoints) > 0 {
		if err := json.Unmarshal(keyPoints, &result.Content.KeyPoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key points: %w", err)
		}
	}
	result.ErrorMessage = errorMsg.String
	if processingStartedAt.Valid {
		t := processingStartedAt.Time
		result.ProcessingStartedAt = &t
	}
	if processingCompletedAt.Valid {
		t := processingCompletedAt.Time
		result.ProcessingCompletedAt = &t
	}

	return &result, nil
}
