// Package task implements the dispatch scheduler and task processor for
// asynchronous lesson analysis. Tasks are persisted in the task store,
// picked up on a fixed polling interval, dispatched across two lanes
// (video work is independent of the gated inference service, text work is
// not) and retried with exponential backoff until their budget runs out.
package task

import (
	"context"

	"github.com/lessonworks/analysis-api/internal/domain"
)

// ContentAnalyzer is the text lane collaborator. Both routines call the
// gated external inference service.
type ContentAnalyzer interface {
	// FullAnalysis produces the complete analysis document for a lesson.
	FullAnalysis(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error)

	// Summarize produces the summary-only document for a lesson.
	Summarize(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error)
}

// VideoAnalyzer is the video lane collaborator. It does not depend on the
// gated inference service.
type VideoAnalyzer interface {
	// AnalyzeVideo extracts the transcript and key points for a lesson's video.
	AnalyzeVideo(ctx context.Context, lesson *domain.LessonContent) (*domain.AnalysisContent, error)
}

// HealthGate is the cached availability check that permits or blocks
// dispatch of externally-dependent task types.
type HealthGate interface {
	// IsAvailable reports whether the external service is considered
	// online, refreshing the cached verdict only past its TTL.
	IsAvailable(ctx context.Context) bool

	// ForceCheck probes immediately, bypassing the cache.
	ForceCheck(ctx context.Context) bool
}

// WorkerStatus is the observable snapshot of the dispatch scheduler.
type WorkerStatus struct {
	IsRunning           bool  `json:"is_running"`
	CurrentlyProcessing int   `json:"currently_processing"`
	MaxConcurrent       int   `json:"max_concurrent"`
	PollIntervalMs      int64 `json:"poll_interval_ms"`
}
