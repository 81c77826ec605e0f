package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type processorFixture struct {
	processor *Processor
	tasks     *MockTaskStore
	results   *MockResultStore
	lessons   *MockLessonReader
	content   *MockContentAnalyzer
	video     *MockVideoAnalyzer
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	f := &processorFixture{
		tasks:   NewMockTaskStore(),
		results: NewMockResultStore(),
		lessons: NewMockLessonReader(),
		content: &MockContentAnalyzer{},
		video:   &MockVideoAnalyzer{},
	}

	processor, err := NewProcessor(f.tasks, f.results, f.lessons, f.content, f.video, testLogger())
	require.NoError(t, err)
	f.processor = processor
	return f
}

// seedTask registers a lesson, its result row, and a pending task of the
// given type, mirroring what the service layer does at enqueue time.
func (f *processorFixture) seedTask(t *testing.T, taskType domain.TaskType, videoURL string) *domain.AnalysisTask {
	t.Helper()

	lesson := domain.LessonContent{
		ID:       uuid.New(),
		Title:    "Channels",
		Content:  "Channels connect goroutines.",
		VideoURL: videoURL,
	}
	f.lessons.AddLesson(lesson)

	task, err := domain.NewAnalysisTask(lesson.ID, taskType, domain.DefaultPriority, nil, "test")
	require.NoError(t, err)
	f.tasks.Seed(task)

	_, err = f.results.EnsureForLesson(context.Background(), lesson.ID)
	require.NoError(t, err)
	return task
}

func TestProcessor_Process_FullAnalysisWithVideo(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeFullAnalysis, "https://cdn.example.com/v.mp4")

	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Empty(t, stored.ErrorMessage)

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusCompleted, result.Status)
	assert.Equal(t, "a full analysis", result.Content.Summary)
	assert.Equal(t, "a transcript", result.Content.Transcript)
	assert.Equal(t, []string{"point one", "video point"}, result.Content.KeyPoints)

	assert.EqualValues(t, 1, f.content.FullAnalysisCalls.Load())
	assert.EqualValues(t, 1, f.video.AnalyzeVideoCalls.Load())
}

func TestProcessor_Process_FullAnalysisWithoutVideo(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeFullAnalysis, "")

	require.NoError(t, f.processor.Process(context.Background(), task))

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusCompleted, result.Status)
	assert.Empty(t, result.Content.Transcript)
	assert.EqualValues(t, 0, f.video.AnalyzeVideoCalls.Load())
}

func TestProcessor_Process_Summary(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")

	require.NoError(t, f.processor.Process(context.Background(), task))

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusCompleted, result.Status)
	assert.Equal(t, "a summary", result.Content.Summary)
	assert.EqualValues(t, 1, f.content.SummarizeCalls.Load())
	assert.EqualValues(t, 0, f.content.FullAnalysisCalls.Load())
}

func TestProcessor_Process_VideoOnly(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeVideoAnalysis, "https://cdn.example.com/v.mp4")

	require.NoError(t, f.processor.Process(context.Background(), task))

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, "a transcript", result.Content.Transcript)
	assert.EqualValues(t, 0, f.content.FullAnalysisCalls.Load())
	assert.EqualValues(t, 0, f.content.SummarizeCalls.Load())
}

func TestProcessor_Process_SkipsAlreadyClaimedTask(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")

	// Another worker claims the task first.
	require.NoError(t, f.tasks.MarkProcessing(context.Background(), task.ID))

	require.NoError(t, f.processor.Process(context.Background(), task))

	assert.EqualValues(t, 0, f.content.SummarizeCalls.Load())
	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, stored.Status)
}

func TestProcessor_Process_TransientFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")
	f.content.SummarizeFn = func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
		return nil, errors.New("inference timeout")
	}

	before := time.Now()
	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.ErrorMessage, "inference timeout")

	require.NotNil(t, stored.ScheduledAt)
	assert.WithinDuration(t, before.Add(time.Minute), *stored.ScheduledAt, 5*time.Second)

	// A retryable failure must not flip the lesson's result to failed.
	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusProcessing, result.Status)
}

func TestProcessor_Process_BackoffGrowsWithRetryCount(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")
	task.RetryCount = 1
	f.tasks.Seed(task)
	f.content.SummarizeFn = func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
		return nil, errors.New("still down")
	}

	before := time.Now()
	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RetryCount)
	require.NotNil(t, stored.ScheduledAt)
	assert.WithinDuration(t, before.Add(2*time.Minute), *stored.ScheduledAt, 5*time.Second)
}

func TestProcessor_Process_ExhaustedRetriesFailTerminally(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")
	task.RetryCount = task.MaxRetries - 1
	f.tasks.Seed(task)
	f.content.SummarizeFn = func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
		return nil, errors.New("inference down")
	}

	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, stored.MaxRetries, stored.RetryCount)

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "exceeded")
	assert.Contains(t, result.ErrorMessage, "inference down")
}

func TestProcessor_Process_SingleRetryBudgetFailsOnFirstError(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")
	task.MaxRetries = 1
	f.tasks.Seed(task)
	f.content.SummarizeFn = func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
		return nil, errors.New("boom")
	}

	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "exceeded")
}

func TestProcessor_Process_UnknownTaskTypeFails(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeSummary, "")
	task.TaskType = "mystery"
	f.tasks.Seed(task)

	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.ErrorMessage, "unknown task type")
}

func TestProcessor_Process_MissingLessonFails(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task, err := domain.NewAnalysisTask(uuid.New(), domain.TaskTypeSummary, domain.DefaultPriority, nil, "test")
	require.NoError(t, err)
	f.tasks.Seed(task)
	_, err = f.results.EnsureForLesson(context.Background(), task.LessonID)
	require.NoError(t, err)

	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.ErrorMessage, "failed to load lesson")
}

func TestProcessor_Process_RepairsMissingResultRow(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	lesson := domain.LessonContent{ID: uuid.New(), Title: "T", Content: "C"}
	f.lessons.AddLesson(lesson)

	task, err := domain.NewAnalysisTask(lesson.ID, domain.TaskTypeSummary, domain.DefaultPriority, nil, "test")
	require.NoError(t, err)
	f.tasks.Seed(task)

	// No EnsureForLesson: the result row does not exist yet.
	require.NoError(t, f.processor.Process(context.Background(), task))

	result, err := f.results.GetByLessonID(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusCompleted, result.Status)
}

func TestProcessor_Process_VideoFailureFailsFullAnalysis(t *testing.T) {
	t.Parallel()

	f := newProcessorFixture(t)
	task := f.seedTask(t, domain.TaskTypeFullAnalysis, "https://cdn.example.com/v.mp4")
	f.video.AnalyzeVideoFn = func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
		return nil, errors.New("pipeline 502")
	}

	require.NoError(t, f.processor.Process(context.Background(), task))

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)

	result, err := f.results.GetByLessonID(context.Background(), task.LessonID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.ResultStatusCompleted, result.Status)
}

func TestNewProcessor_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewProcessor(nil, NewMockResultStore(), NewMockLessonReader(), &MockContentAnalyzer{}, &MockVideoAnalyzer{}, testLogger())
	assert.Error(t, err)

	_, err = NewProcessor(NewMockTaskStore(), NewMockResultStore(), NewMockLessonReader(), &MockContentAnalyzer{}, &MockVideoAnalyzer{}, nil)
	assert.Error(t, err)
}
