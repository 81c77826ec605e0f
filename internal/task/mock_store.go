package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/store"
)

// MockTaskStore implements store.TaskStore in memory for testing. The
// default behavior mirrors the real store's semantics (atomic claim,
// per-lesson live uniqueness, eligibility rules); individual methods can
// be overridden through the Fn fields.
type MockTaskStore struct {
	mutex sync.RWMutex
	tasks map[uuid.UUID]domain.AnalysisTask
	// claimedAt records when each task entered processing, for ReclaimStuck.
	claimedAt map[uuid.UUID]time.Time

	EnqueueFn        func(ctx context.Context, t *domain.AnalysisTask) (*domain.AnalysisTask, bool, error)
	PickEligibleFn   func(ctx context.Context, limit int, taskTypes ...domain.TaskType) ([]*domain.AnalysisTask, error)
	MarkProcessingFn func(ctx context.Context, id uuid.UUID) error
	ReclaimStuckFn   func(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewMockTaskStore creates an empty in-memory task store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks:     make(map[uuid.UUID]domain.AnalysisTask),
		claimedAt: make(map[uuid.UUID]time.Time),
	}
}

// Enqueue inserts the task unless a live task already exists for the lesson.
func (s *MockTaskStore) Enqueue(ctx context.Context, t *domain.AnalysisTask) (*domain.AnalysisTask, bool, error) {
	if s.EnqueueFn != nil {
		return s.EnqueueFn(ctx, t)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, existing := range s.tasks {
		if existing.LessonID == t.LessonID && existing.IsLive() {
			found := existing
			return &found, false, nil
		}
	}

	s.tasks[t.ID] = *t
	return t, true, nil
}

// GetByID retrieves a task by ID.
func (s *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisTask, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &t, nil
}

// PickEligible selects pending tasks with retry budget whose scheduled_at
// has passed, ordered by priority then creation time.
func (s *MockTaskStore) PickEligible(ctx context.Context, limit int, taskTypes ...domain.TaskType) ([]*domain.AnalysisTask, error) {
	if s.PickEligibleFn != nil {
		return s.PickEligibleFn(ctx, limit, taskTypes...)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := time.Now()
	var eligible []*domain.AnalysisTask
	for _, t := range s.tasks {
		if t.Status != domain.TaskStatusPending {
			continue
		}
		if t.RetryCount >= t.MaxRetries {
			continue
		}
		if t.ScheduledAt != nil && t.ScheduledAt.After(now) {
			continue
		}
		if len(taskTypes) > 0 && !containsType(taskTypes, t.TaskType) {
			continue
		}
		found := t
		eligible = append(eligible, &found)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority < eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// MarkProcessing atomically claims a pending task.
func (s *MockTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if s.MarkProcessingFn != nil {
		return s.MarkProcessingFn(ctx, id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != domain.TaskStatusPending {
		return store.ErrNotClaimed
	}

	now := time.Now()
	t.Status = domain.TaskStatusProcessing
	t.ProcessingStartedAt = &now
	t.UpdatedAt = now
	s.tasks[id] = t
	s.claimedAt[id] = now
	return nil
}

// MarkCompleted marks the task completed and clears failure diagnostics.
func (s *MockTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	now := time.Now()
	t.Status = domain.TaskStatusCompleted
	t.ErrorMessage = ""
	t.ErrorStack = ""
	t.ProcessedAt = &now
	t.UpdatedAt = now
	s.tasks[id] = t
	return nil
}

// MarkFailedForRetry puts the task back to pending with the retry count
// incremented and the next attempt deferred.
func (s *MockTaskStore) MarkFailedForRetry(ctx context.Context, id uuid.UUID, taskErr error, nextScheduledAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	now := time.Now()
	t.Status = domain.TaskStatusPending
	t.RetryCount++
	t.ErrorMessage = taskErr.Error()
	t.ScheduledAt = &nextScheduledAt
	t.UpdatedAt = now
	s.tasks[id] = t
	return nil
}

// MarkFailedTerminal marks the task failed permanently.
func (s *MockTaskStore) MarkFailedTerminal(ctx context.Context, id uuid.UUID, taskErr error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	now := time.Now()
	t.Status = domain.TaskStatusFailed
	t.RetryCount = t.MaxRetries
	t.ErrorMessage = taskErr.Error()
	t.ProcessedAt = &now
	t.UpdatedAt = now
	s.tasks[id] = t
	return nil
}

// ReclaimStuck resets tasks stuck in processing back to pending.
func (s *MockTaskStore) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	if s.ReclaimStuckFn != nil {
		return s.ReclaimStuckFn(ctx, olderThan)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	reclaimed := 0
	for id, t := range s.tasks {
		if t.Status != domain.TaskStatusProcessing {
			continue
		}
		claimed, ok := s.claimedAt[id]
		if !ok || now.Sub(claimed) <= olderThan {
			continue
		}
		t.Status = domain.TaskStatusPending
		t.ProcessingStartedAt = nil
		t.UpdatedAt = now
		s.tasks[id] = t
		reclaimed++
	}
	return reclaimed, nil
}

// Seed places a task into the store directly, bypassing Enqueue semantics.
func (s *MockTaskStore) Seed(t *domain.AnalysisTask) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks[t.ID] = *t
}

// SetClaimedAt backdates a processing task's claim time, for sweep tests.
func (s *MockTaskStore) SetClaimedAt(id uuid.UUID, at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.claimedAt[id] = at
}

func containsType(types []domain.TaskType, t domain.TaskType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// MockResultStore implements store.AnalysisResultStore in memory.
type MockResultStore struct {
	mutex   sync.RWMutex
	results map[uuid.UUID]domain.AnalysisResult

	MarkProcessingFn func(ctx context.Context, lessonID uuid.UUID) error
	SaveCompletedFn  func(ctx context.Context, lessonID uuid.UUID, content domain.AnalysisContent) error
	MarkFailedFn     func(ctx context.Context, lessonID uuid.UUID, message string) error
}

// NewMockResultStore creates an empty in-memory result store.
func NewMockResultStore() *MockResultStore {
	return &MockResultStore{results: make(map[uuid.UUID]domain.AnalysisResult)}
}

// EnsureForLesson creates the pending result row or bumps its version.
func (s *MockResultStore) EnsureForLesson(ctx context.Context, lessonID uuid.UUID) (*domain.AnalysisResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.results[lessonID]; ok {
		existing.Version++
		existing.UpdatedAt = time.Now()
		s.results[lessonID] = existing
		return &existing, nil
	}

	result, err := domain.NewAnalysisResult(lessonID)
	if err != nil {
		return nil, err
	}
	s.results[lessonID] = *result
	return result, nil
}

// GetByLessonID retrieves the result for a lesson.
func (s *MockResultStore) GetByLessonID(ctx context.Context, lessonID uuid.UUID) (*domain.AnalysisResult, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, ok := s.results[lessonID]
	if !ok {
		return nil, store.ErrResultNotFound
	}
	return &r, nil
}

// MarkProcessing flips the result to processing.
func (s *MockResultStore) MarkProcessing(ctx context.Context, lessonID uuid.UUID) error {
	if s.MarkProcessingFn != nil {
		return s.MarkProcessingFn(ctx, lessonID)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.results[lessonID]
	if !ok {
		return store.ErrResultNotFound
	}

	now := time.Now()
	r.Status = domain.ResultStatusProcessing
	r.ProcessingStartedAt = &now
	r.UpdatedAt = now
	s.results[lessonID] = r
	return nil
}

// SaveCompleted merges the non-empty content fields and marks completion.
func (s *MockResultStore) SaveCompleted(ctx context.Context, lessonID uuid.UUID, content domain.AnalysisContent) error {
	if s.SaveCompletedFn != nil {
		return s.SaveCompletedFn(ctx, lessonID, content)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.results[lessonID]
	if !ok {
		return store.ErrResultNotFound
	}

	if content.Summary != "" {
		r.Content.Summary = content.Summary
	}
	if len(content.KeyPoints) > 0 {
		r.Content.KeyPoints = content.KeyPoints
	}
	if content.Difficulty != "" {
		r.Content.Difficulty = content.Difficulty
	}
	if content.EstimatedMinutes > 0 {
		r.Content.EstimatedMinutes = content.EstimatedMinutes
	}
	if content.Transcript != "" {
		r.Content.Transcript = content.Transcript
	}

	now := time.Now()
	r.Status = domain.ResultStatusCompleted
	r.ErrorMessage = ""
	r.ProcessingCompletedAt = &now
	r.UpdatedAt = now
	s.results[lessonID] = r
	return nil
}

// MarkFailed forces the result to failed with the given message.
func (s *MockResultStore) MarkFailed(ctx context.Context, lessonID uuid.UUID, message string) error {
	if s.MarkFailedFn != nil {
		return s.MarkFailedFn(ctx, lessonID, message)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.results[lessonID]
	if !ok {
		return store.ErrResultNotFound
	}

	now := time.Now()
	r.Status = domain.ResultStatusFailed
	r.ErrorMessage = message
	r.UpdatedAt = now
	s.results[lessonID] = r
	return nil
}

// MockLessonReader implements store.LessonReader over a fixed lesson map.
type MockLessonReader struct {
	mutex   sync.RWMutex
	lessons map[uuid.UUID]domain.LessonContent

	GetLessonContentFn func(ctx context.Context, lessonID uuid.UUID) (*domain.LessonContent, error)
}

// NewMockLessonReader creates an empty in-memory lesson reader.
func NewMockLessonReader() *MockLessonReader {
	return &MockLessonReader{lessons: make(map[uuid.UUID]domain.LessonContent)}
}

// AddLesson registers a lesson for lookup.
func (r *MockLessonReader) AddLesson(lesson domain.LessonContent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.lessons[lesson.ID] = lesson
}

// GetLessonContent returns the registered lesson or store.ErrLessonNotFound.
func (r *MockLessonReader) GetLessonContent(ctx context.Context, lessonID uuid.UUID) (*domain.LessonContent, error) {
	if r.GetLessonContentFn != nil {
		return r.GetLessonContentFn(ctx, lessonID)
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	lesson, ok := r.lessons[lessonID]
	if !ok {
		return nil, store.ErrLessonNotFound
	}
	return &lesson, nil
}
