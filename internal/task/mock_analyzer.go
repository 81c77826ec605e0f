package task

import (
	"context"
	"sync/atomic"

	"github.com/lessonworks/analysis-api/internal/domain"
)

// MockContentAnalyzer implements ContentAnalyzer for testing. Call counts
// are tracked atomically so tests can assert on concurrent dispatch.
type MockContentAnalyzer struct {
	FullAnalysisFn func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error)
	SummarizeFn    func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error)

	FullAnalysisCalls atomic.Int64
	SummarizeCalls    atomic.Int64
}

// FullAnalysis delegates to FullAnalysisFn or returns a canned document.
func (m *MockContentAnalyzer) FullAnalysis(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
	m.FullAnalysisCalls.Add(1)
	if m.FullAnalysisFn != nil {
		return m.FullAnalysisFn(ctx, lesson)
	}
	return &domain.AnalysisContent{
		Summary:          "a full analysis",
		KeyPoints:        []string{"point one"},
		Difficulty:       "beginner",
		EstimatedMinutes: 10,
	}, nil
}

// Summarize delegates to SummarizeFn or returns a canned summary.
func (m *MockContentAnalyzer) Summarize(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
	m.SummarizeCalls.Add(1)
	if m.SummarizeFn != nil {
		return m.SummarizeFn(ctx, lesson)
	}
	return &domain.AnalysisContent{Summary: "a summary"}, nil
}

// MockVideoAnalyzer implements VideoAnalyzer for testing.
type MockVideoAnalyzer struct {
	AnalyzeVideoFn func(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error)

	AnalyzeVideoCalls atomic.Int64
}

// AnalyzeVideo delegates to AnalyzeVideoFn or returns a canned transcript.
func (m *MockVideoAnalyzer) AnalyzeVideo(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error) {
	m.AnalyzeVideoCalls.Add(1)
	if m.AnalyzeVideoFn != nil {
		return m.AnalyzeVideoFn(ctx, lesson)
	}
	return &domain.AnalysisContent{
		Transcript: "a transcript",
		KeyPoints:  []string{"video point"},
	}, nil
}

// MockHealthGate implements HealthGate with a switchable verdict.
type MockHealthGate struct {
	available atomic.Bool

	IsAvailableCalls atomic.Int64
	ForceCheckCalls  atomic.Int64
}

// NewMockHealthGate creates a gate with the given initial verdict.
func NewMockHealthGate(available bool) *MockHealthGate {
	g := &MockHealthGate{}
	g.available.Store(available)
	return g
}

// SetAvailable changes the gate verdict.
func (g *MockHealthGate) SetAvailable(available bool) {
	g.available.Store(available)
}

// IsAvailable returns the configured verdict.
func (g *MockHealthGate) IsAvailable(ctx context.Context) bool {
	g.IsAvailableCalls.Add(1)
	return g.available.Load()
}

// ForceCheck returns the configured verdict, counting the probe.
func (g *MockHealthGate) ForceCheck(ctx context.Context) bool {
	g.ForceCheckCalls.Add(1)
	return g.available.Load()
}
