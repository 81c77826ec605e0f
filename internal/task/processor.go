package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/platform/logger"
	"github.com/lessonworks/analysis-api/internal/store"
)

// Processor runs a single analysis task from claim to a settled outcome.
// Every attempt ends in exactly one of: completed, scheduled for retry,
// or terminally failed. Analysis errors never escape Process; only store
// bookkeeping failures are returned to the caller.
type Processor struct {
	tasks   store.TaskStore
	results store.AnalysisResultStore
	lessons store.LessonReader
	content ContentAnalyzer
	video   VideoAnalyzer
	logger  *slog.Logger
	now     func() time.Time
}

// NewProcessor creates a task processor. All collaborators are required.
func NewProcessor(
	tasks store.TaskStore,
	results store.AnalysisResultStore,
	lessons store.LessonReader,
	content ContentAnalyzer,
	video VideoAnalyzer,
	log *slog.Logger,
) (*Processor, error) {
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if results == nil {
		return nil, errors.New("result store cannot be nil")
	}
	if lessons == nil {
		return nil, errors.New("lesson reader cannot be nil")
	}
	if content == nil {
		return nil, errors.New("content analyzer cannot be nil")
	}
	if video == nil {
		return nil, errors.New("video analyzer cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Processor{
		tasks:   tasks,
		results: results,
		lessons: lessons,
		content: content,
		video:   video,
		logger:  log.With(slog.String("component", "task_processor")),
		now:     time.Now,
	}, nil
}

// Process claims the task, runs the analysis routine for its type, and
// settles the outcome in both the task store and the result store.
func (p *Processor) Process(ctx context.Context, t *domain.AnalysisTask) error {
	log := p.logger.With(
		slog.String("task_id", t.ID.String()),
		slog.String("lesson_id", t.LessonID.String()),
		slog.String("task_type", string(t.TaskType)),
		slog.Int("retry_count", t.RetryCount),
	)
	ctx = logger.WithLogger(ctx, log)

	start := p.now()

	if err := p.tasks.MarkProcessing(ctx, t.ID); err != nil {
		if errors.Is(err, store.ErrNotClaimed) {
			tasksSettled.WithLabelValues(outcomeSkipped).Inc()
			log.DebugContext(ctx, "task already claimed elsewhere, skipping")
			return nil
		}
		return fmt.Errorf("failed to claim task: %w", err)
	}

	p.markResultProcessing(ctx, t, log)

	content, analysisErr := p.analyze(ctx, t)
	if analysisErr != nil {
		return p.settleFailure(ctx, t, analysisErr, log)
	}

	if err := p.tasks.MarkCompleted(ctx, t.ID); err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}
	if err := p.results.SaveCompleted(ctx, t.LessonID, *content); err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}

	tasksSettled.WithLabelValues(outcomeCompleted).Inc()
	taskDuration.WithLabelValues(string(t.TaskType)).Observe(p.now().Sub(start).Seconds())
	log.InfoContext(ctx, "task completed",
		"duration_ms", p.now().Sub(start).Milliseconds())
	return nil
}

// markResultProcessing mirrors the claim onto the result row. The row is
// created lazily at enqueue time, but an operator may have enqueued a task
// out of band, so a missing row is repaired rather than treated as fatal.
func (p *Processor) markResultProcessing(ctx context.Context, t *domain.AnalysisTask, log *slog.Logger) {
	err := p.results.MarkProcessing(ctx, t.LessonID)
	if errors.Is(err, store.ErrResultNotFound) {
		if _, ensureErr := p.results.EnsureForLesson(ctx, t.LessonID); ensureErr == nil {
			err = p.results.MarkProcessing(ctx, t.LessonID)
		}
	}
	if err != nil {
		log.WarnContext(ctx, "failed to mark result processing", "error", err)
	}
}

// analyze routes the task to the routine for its type. An unknown type is
// an ordinary failure so it flows through the same retry accounting.
func (p *Processor) analyze(ctx context.Context, t *domain.AnalysisTask) (*domain.AnalysisContent, error) {
	lesson, err := p.lessons.GetLessonContent(ctx, t.LessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson: %w", err)
	}

	switch t.TaskType {
	case domain.TaskTypeFullAnalysis:
		return p.fullAnalysis(ctx, lesson)
	case domain.TaskTypeSummary:
		return p.content.Summarize(ctx, lesson)
	case domain.TaskTypeVideoAnalysis:
		return p.video.AnalyzeVideo(ctx, lesson)
	default:
		return nil, fmt.Errorf("unknown task type %q", t.TaskType)
	}
}

// fullAnalysis combines the text analysis with the video analysis when the
// lesson carries video material. Either collaborator failing fails the
// whole attempt; a partial document is never persisted as completed.
func (p *Processor) fullAnalysis(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
	content, err := p.content.FullAnalysis(ctx, lesson)
	if err != nil {
		return nil, err
	}

	if !lesson.HasVideo() {
		return content, nil
	}

	videoContent, err := p.video.AnalyzeVideo(ctx, lesson)
	if err != nil {
		return nil, fmt.Errorf("video analysis within full analysis failed: %w", err)
	}

	content.Transcript = videoContent.Transcript
	content.KeyPoints = append(content.KeyPoints, videoContent.KeyPoints...)
	return content, nil
}

// settleFailure records the attempt failure: either schedule the next
// attempt with exponential backoff, or, when the retry budget is spent,
// fail the task and the lesson's result terminally.
func (p *Processor) settleFailure(
	ctx context.Context,
	t *domain.AnalysisTask,
	taskErr error,
	log *slog.Logger,
) error {
	if t.RetryCount+1 >= t.MaxRetries {
		if err := p.tasks.MarkFailedTerminal(ctx, t.ID, taskErr); err != nil {
			return fmt.Errorf("failed to mark task terminally failed: %w", err)
		}

		message := fmt.Sprintf("analysis failed after %d attempts, max retries exceeded: %v",
			t.RetryCount+1, taskErr)
		if err := p.results.MarkFailed(ctx, t.LessonID, message); err != nil {
			return fmt.Errorf("failed to mark result failed: %w", err)
		}

		tasksSettled.WithLabelValues(outcomeFailed).Inc()
		log.ErrorContext(ctx, "task failed terminally",
			"error", taskErr,
			"attempts", t.RetryCount+1)
		return nil
	}

	delay := RetryDelay(t.RetryCount)
	nextAt := p.now().Add(delay)
	if err := p.tasks.MarkFailedForRetry(ctx, t.ID, taskErr, nextAt); err != nil {
		return fmt.Errorf("failed to schedule task retry: %w", err)
	}

	tasksSettled.WithLabelValues(outcomeRetried).Inc()
	log.WarnContext(ctx, "task attempt failed, retry scheduled",
		"error", taskErr,
		"retry_delay", delay.String(),
		"next_attempt_at", nextAt.Format(time.RFC3339))
	return nil
}
