package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/service"
	"github.com/lessonworks/analysis-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type analysisFixture struct {
	router  chi.Router
	tasks   *task.MockTaskStore
	results *task.MockResultStore
}

func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()

	tasks := task.NewMockTaskStore()
	results := task.NewMockResultStore()
	svc, err := service.NewAnalysisService(tasks, results, testLogger())
	require.NoError(t, err)

	handler := NewAnalysisHandler(svc)
	router := chi.NewRouter()
	router.Post("/api/analysis/tasks", handler.EnqueueTask)
	router.Get("/api/analysis/tasks/{taskID}", handler.GetTask)
	router.Get("/api/lessons/{lessonID}/analysis", handler.GetResult)

	return &analysisFixture{router: router, tasks: tasks, results: results}
}

func (f *analysisFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAnalysisHandler_EnqueueTask(t *testing.T) {
	t.Parallel()

	t.Run("queues new task with 202", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		lessonID := uuid.New()

		rec := f.do(t, http.MethodPost, "/api/analysis/tasks", EnqueueTaskRequest{
			LessonID: lessonID.String(),
			TaskType: "full_analysis",
		})
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp EnqueueTaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Created)
		assert.Equal(t, lessonID, resp.Task.LessonID)
		assert.Equal(t, domain.TaskStatusPending, resp.Task.Status)
		assert.Equal(t, domain.DefaultPriority, resp.Task.Priority)
	})

	t.Run("duplicate request returns existing task with 200", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		lessonID := uuid.New()
		body := EnqueueTaskRequest{LessonID: lessonID.String(), TaskType: "summary"}

		first := f.do(t, http.MethodPost, "/api/analysis/tasks", body)
		require.Equal(t, http.StatusAccepted, first.Code)

		second := f.do(t, http.MethodPost, "/api/analysis/tasks", body)
		require.Equal(t, http.StatusOK, second.Code)

		var firstResp, secondResp EnqueueTaskResponse
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
		assert.False(t, secondResp.Created)
		assert.Equal(t, firstResp.Task.ID, secondResp.Task.ID)
	})

	t.Run("rejects unknown task type", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		rec := f.do(t, http.MethodPost, "/api/analysis/tasks", EnqueueTaskRequest{
			LessonID: uuid.New().String(),
			TaskType: "mystery",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed lesson ID", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		rec := f.do(t, http.MethodPost, "/api/analysis/tasks", EnqueueTaskRequest{
			LessonID: "not-a-uuid",
			TaskType: "summary",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/analysis/tasks", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalysisHandler_GetResult(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		lessonID := uuid.New()
		_, err := f.results.EnsureForLesson(context.Background(), lessonID)
		require.NoError(t, err)
		require.NoError(t, f.results.SaveCompleted(context.Background(), lessonID, domain.AnalysisContent{
			Summary: "done",
		}))

		rec := f.do(t, http.MethodGet, "/api/lessons/"+lessonID.String()+"/analysis", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var result domain.AnalysisResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, domain.ResultStatusCompleted, result.Status)
		assert.Equal(t, "done", result.Content.Summary)
	})

	t.Run("404 when no result exists", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		rec := f.do(t, http.MethodGet, "/api/lessons/"+uuid.New().String()+"/analysis", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("400 on malformed lesson ID", func(t *testing.T) {
		t.Parallel()

		f := newAnalysisFixture(t)
		rec := f.do(t, http.MethodGet, "/api/lessons/banana/analysis", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalysisHandler_GetTask(t *testing.T) {
	t.Parallel()

	f := newAnalysisFixture(t)
	queued, err := domain.NewAnalysisTask(uuid.New(), domain.TaskTypeSummary, domain.DefaultPriority, nil, "test")
	require.NoError(t, err)
	f.tasks.Seed(queued)

	rec := f.do(t, http.MethodGet, "/api/analysis/tasks/"+queued.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched domain.AnalysisTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, queued.ID, fetched.ID)

	rec = f.do(t, http.MethodGet, "/api/analysis/tasks/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
