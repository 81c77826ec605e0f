package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/events"
	"github.com/lessonworks/analysis-api/internal/store"
	"github.com/lessonworks/analysis-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T) (*AnalysisService, *task.MockTaskStore, *task.MockResultStore) {
	t.Helper()

	tasks := task.NewMockTaskStore()
	results := task.NewMockResultStore()
	svc, err := NewAnalysisService(tasks, results, testLogger())
	require.NoError(t, err)
	return svc, tasks, results
}

func TestAnalysisService_QueueTask(t *testing.T) {
	t.Parallel()

	t.Run("creates task and result row", func(t *testing.T) {
		t.Parallel()

		svc, _, results := newService(t)
		lessonID := uuid.New()

		queued, created, err := svc.QueueTask(context.Background(), lessonID,
			domain.TaskTypeFullAnalysis, 0, nil, "api:test")
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, domain.TaskStatusPending, queued.Status)
		assert.Equal(t, domain.DefaultPriority, queued.Priority, "zero priority falls back to the default")
		assert.Equal(t, domain.DefaultMaxRetries, queued.MaxRetries)

		result, err := results.GetByLessonID(context.Background(), lessonID)
		require.NoError(t, err)
		assert.Equal(t, domain.ResultStatusPending, result.Status)
		assert.Equal(t, 1, result.Version)
	})

	t.Run("deduplicates against live task", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		lessonID := uuid.New()

		first, created, err := svc.QueueTask(context.Background(), lessonID,
			domain.TaskTypeFullAnalysis, 0, nil, "api:test")
		require.NoError(t, err)
		require.True(t, created)

		// Second request for the same lesson, even with a different type,
		// returns the existing live task.
		second, created, err := svc.QueueTask(context.Background(), lessonID,
			domain.TaskTypeSummary, 0, nil, "api:test")
		require.NoError(t, err)

		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, domain.TaskTypeFullAnalysis, second.TaskType)
	})

	t.Run("new task after previous one settled", func(t *testing.T) {
		t.Parallel()

		svc, tasks, results := newService(t)
		lessonID := uuid.New()

		first, _, err := svc.QueueTask(context.Background(), lessonID,
			domain.TaskTypeSummary, 0, nil, "api:test")
		require.NoError(t, err)
		require.NoError(t, tasks.MarkProcessing(context.Background(), first.ID))
		require.NoError(t, tasks.MarkCompleted(context.Background(), first.ID))

		second, created, err := svc.QueueTask(context.Background(), lessonID,
			domain.TaskTypeSummary, 0, nil, "api:test")
		require.NoError(t, err)

		assert.True(t, created)
		assert.NotEqual(t, first.ID, second.ID)

		// A genuinely new request bumps the result version.
		result, err := results.GetByLessonID(context.Background(), lessonID)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Version)
	})

	t.Run("invalid task type rejected", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		_, _, err := svc.QueueTask(context.Background(), uuid.New(),
			domain.TaskType("mystery"), 0, nil, "api:test")
		assert.ErrorIs(t, err, domain.ErrInvalidTaskType)
	})
}

func TestAnalysisService_GetResult(t *testing.T) {
	t.Parallel()

	svc, _, results := newService(t)
	lessonID := uuid.New()

	_, err := svc.GetResult(context.Background(), lessonID)
	assert.ErrorIs(t, err, store.ErrResultNotFound)

	_, err = results.EnsureForLesson(context.Background(), lessonID)
	require.NoError(t, err)

	result, err := svc.GetResult(context.Background(), lessonID)
	require.NoError(t, err)
	assert.Equal(t, lessonID, result.LessonID)
}

func TestAnalysisService_HandleEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		action         events.LessonAction
		contentChanged bool
		mediaChanged   bool
		wantType       domain.TaskType
		wantPriority   int
	}{
		{
			name:         "created lesson gets full analysis",
			action:       events.LessonCreated,
			wantType:     domain.TaskTypeFullAnalysis,
			wantPriority: domain.DefaultPriority,
		},
		{
			name:           "content and media change gets full analysis",
			action:         events.LessonUpdated,
			contentChanged: true,
			mediaChanged:   true,
			wantType:       domain.TaskTypeFullAnalysis,
			wantPriority:   updateEventPriority,
		},
		{
			name:         "media-only change gets video analysis",
			action:       events.LessonUpdated,
			mediaChanged: true,
			wantType:     domain.TaskTypeVideoAnalysis,
			wantPriority: updateEventPriority,
		},
		{
			name:           "content-only change gets summary",
			action:         events.LessonUpdated,
			contentChanged: true,
			wantType:       domain.TaskTypeSummary,
			wantPriority:   updateEventPriority,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, tasks, _ := newService(t)
			lessonID := uuid.New()

			event, err := events.NewLessonEvent(lessonID, tc.action, tc.contentChanged, tc.mediaChanged)
			require.NoError(t, err)
			require.NoError(t, svc.HandleEvent(context.Background(), event))

			picked, err := tasks.PickEligible(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, picked, 1)
			assert.Equal(t, tc.wantType, picked[0].TaskType)
			assert.Equal(t, tc.wantPriority, picked[0].Priority)
			assert.Equal(t, lessonID, picked[0].LessonID)
		})
	}

	t.Run("no-op update queues nothing", func(t *testing.T) {
		t.Parallel()

		svc, tasks, _ := newService(t)
		event, err := events.NewLessonEvent(uuid.New(), events.LessonUpdated, false, false)
		require.NoError(t, err)
		require.NoError(t, svc.HandleEvent(context.Background(), event))

		picked, err := tasks.PickEligible(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, picked)
	})
}

func TestAnalysisService_UpdateEventsQueueAtElevatedPriority(t *testing.T) {
	t.Parallel()

	updates := []struct {
		name           string
		contentChanged bool
		mediaChanged   bool
	}{
		{name: "content and media", contentChanged: true, mediaChanged: true},
		{name: "media only", mediaChanged: true},
		{name: "content only", contentChanged: true},
	}

	for _, tc := range updates {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, tasks, _ := newService(t)
			event, err := events.NewLessonEvent(uuid.New(), events.LessonUpdated, tc.contentChanged, tc.mediaChanged)
			require.NoError(t, err)
			require.NoError(t, svc.HandleEvent(context.Background(), event))

			picked, err := tasks.PickEligible(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, picked, 1)
			assert.Equal(t, 3, picked[0].Priority,
				"every update-triggered task outranks default-priority work")
		})
	}
}

func TestNewAnalysisService_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewAnalysisService(nil, task.NewMockResultStore(), testLogger())
	assert.Error(t, err)

	_, err = NewAnalysisService(task.NewMockTaskStore(), nil, testLogger())
	assert.Error(t, err)

	_, err = NewAnalysisService(task.NewMockTaskStore(), task.NewMockResultStore(), nil)
	assert.Error(t, err)
}
