// Package service contains the application services that sit between the
// HTTP layer and the stores. They own the business rules that are not
// persistence concerns: enqueue deduplication policy, lesson event
// routing, and result retrieval.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/events"
	"github.com/lessonworks/analysis-api/internal/store"
)

// updateEventPriority is used for every update-triggered task. An edit to
// an existing lesson should refresh its analysis ahead of default-priority
// work; only freshly created lessons queue at the default.
const updateEventPriority = 3

// AnalysisService coordinates task creation and result access. It also
// implements events.EventHandler so lesson changes queue analysis work
// automatically.
type AnalysisService struct {
	tasks   store.TaskStore
	results store.AnalysisResultStore
	logger  *slog.Logger
}

// NewAnalysisService creates an AnalysisService. All collaborators are
// required.
func NewAnalysisService(
	tasks store.TaskStore,
	results store.AnalysisResultStore,
	logger *slog.Logger,
) (*AnalysisService, error) {
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if results == nil {
		return nil, errors.New("result store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &AnalysisService{
		tasks:   tasks,
		results: results,
		logger:  logger.With(slog.String("component", "analysis_service")),
	}, nil
}

// QueueTask enqueues an analysis task for the lesson. When a live task
// already exists for the lesson the existing task is returned and created
// is false; the caller sees the same response shape either way. A freshly
// created task also ensures the lesson's result row exists and bumps its
// version to mark that a new analysis was requested.
func (s *AnalysisService) QueueTask(
	ctx context.Context,
	lessonID uuid.UUID,
	taskType domain.TaskType,
	priority int,
	metadata map[string]any,
	createdBy string,
) (*domain.AnalysisTask, bool, error) {
	task, err := domain.NewAnalysisTask(lessonID, taskType, priority, metadata, createdBy)
	if err != nil {
		return nil, false, fmt.Errorf("invalid task request: %w", err)
	}

	existing, created, err := s.tasks.Enqueue(ctx, task)
	if err != nil {
		return nil, false, fmt.Errorf("failed to enqueue task: %w", err)
	}

	if !created {
		s.logger.InfoContext(ctx, "enqueue deduplicated against live task",
			"lesson_id", lessonID,
			"requested_type", taskType,
			"existing_task_id", existing.ID,
			"existing_type", existing.TaskType)
		return existing, false, nil
	}

	if _, err := s.results.EnsureForLesson(ctx, lessonID); err != nil {
		return nil, false, fmt.Errorf("failed to ensure result row: %w", err)
	}

	s.logger.InfoContext(ctx, "task enqueued",
		"task_id", task.ID,
		"lesson_id", lessonID,
		"task_type", taskType,
		"priority", task.Priority)
	return task, true, nil
}

// GetResult returns the lesson's current analysis result.
func (s *AnalysisService) GetResult(ctx context.Context, lessonID uuid.UUID) (*domain.AnalysisResult, error) {
	if lessonID == uuid.Nil {
		return nil, domain.ErrEmptyLessonID
	}
	return s.results.GetByLessonID(ctx, lessonID)
}

// GetTask returns a task by ID, for status polling.
func (s *AnalysisService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.AnalysisTask, error) {
	if taskID == uuid.Nil {
		return nil, domain.ErrEmptyTaskID
	}
	return s.tasks.GetByID(ctx, taskID)
}

// HandleEvent routes a lesson change to the cheapest sufficient analysis:
// a new lesson or a combined content and media change gets the full
// analysis, a media-only change re-runs only the video analysis, and a
// content-only change refreshes the summary. Update-triggered tasks all
// queue at elevated priority.
func (s *AnalysisService) HandleEvent(ctx context.Context, event *events.LessonEvent) error {
	taskType, priority, ok := routeEvent(event)
	if !ok {
		s.logger.DebugContext(ctx, "lesson event needs no analysis",
			"event_id", event.ID,
			"lesson_id", event.LessonID)
		return nil
	}

	_, created, err := s.QueueTask(ctx, event.LessonID, taskType, priority, map[string]any{
		"source":   "lesson_event",
		"event_id": event.ID.String(),
		"action":   string(event.Action),
	}, "event:"+string(event.Action))
	if err != nil {
		return fmt.Errorf("failed to queue task for lesson event: %w", err)
	}

	s.logger.InfoContext(ctx, "lesson event handled",
		"event_id", event.ID,
		"lesson_id", event.LessonID,
		"task_type", taskType,
		"created", created)
	return nil
}

func routeEvent(event *events.LessonEvent) (domain.TaskType, int, bool) {
	if event.Action == events.LessonCreated {
		return domain.TaskTypeFullAnalysis, domain.DefaultPriority, true
	}

	switch {
	case event.ContentChanged && event.MediaChanged:
		return domain.TaskTypeFullAnalysis, updateEventPriority, true
	case event.MediaChanged:
		return domain.TaskTypeVideoAnalysis, updateEventPriority, true
	case event.ContentChanged:
		return domain.TaskTypeSummary, updateEventPriority, true
	default:
		return "", 0, false
	}
}
