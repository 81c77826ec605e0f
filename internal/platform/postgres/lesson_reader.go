package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/store"
)

// PostgresLessonReader implements store.LessonReader against the lessons
// table owned by the main application. This is a read-only collaborator
// adapter; the analysis subsystem never writes lessons.
type PostgresLessonReader struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLessonReader creates a new read-only lesson adapter.
func NewPostgresLessonReader(db store.DBTX, logger *slog.Logger) *PostgresLessonReader {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLessonReader{
		db:     db,
		logger: logger.With(slog.String("component", "lesson_reader")),
	}
}

// Ensure PostgresLessonReader implements store.LessonReader
var _ store.LessonReader = (*PostgresLessonReader)(nil)

// GetLessonContent implements store.LessonReader.GetLessonContent.
func (r *PostgresLessonReader) GetLessonContent(
	ctx context.Context,
	lessonID uuid.UUID,
) (*domain.LessonContent, error) {
	query := `
		SELECT id, title, content, video_url
		FROM lessons
		WHERE id = $1
	`

	var lesson domain.LessonContent
	var videoURL sql.NullString

	err := r.db.QueryRowContext(ctx, query, lessonID).Scan(
		&lesson.ID,
		&lesson.Title,
		&lesson.Content,
		&videoURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrLessonNotFound
		}
		r.logger.Error("failed to get lesson content",
			slog.String("error", err.Error()),
			slog.String("lesson_id", lessonID.String()))
		return nil, err
	}

	lesson.VideoURL = videoURL.String
	return &lesson, nil
}
