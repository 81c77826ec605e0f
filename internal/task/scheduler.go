package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lessonworks/analysis-api/internal/config"
	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/platform/logger"
	"github.com/lessonworks/analysis-api/internal/store"
	"golang.org/x/sync/errgroup"
)

// Runner executes one task to a settled outcome. Satisfied by *Processor.
type Runner interface {
	Process(ctx context.Context, t *domain.AnalysisTask) error
}

// Dispatch lane labels for logs and metrics.
const (
	laneVideo = "video"
	laneText  = "text"
)

// Scheduler polls the task store on a fixed interval and dispatches
// eligible tasks across two lanes under a shared concurrency cap. The
// video lane is always dispatched; the text lane only while the inference
// health gate reports the external service available.
type Scheduler struct {
	tasks  store.TaskStore
	health HealthGate
	runner Runner
	logger *slog.Logger

	pollInterval  time.Duration
	maxConcurrent int
	stuckTaskAge  time.Duration

	inFlight atomic.Int64
	running  atomic.Bool

	cancel context.CancelFunc
	loopWG sync.WaitGroup
	taskWG sync.WaitGroup
	tickCh chan struct{}
}

// NewScheduler creates a dispatch scheduler. All collaborators are
// required; zero config values fall back to the documented defaults.
func NewScheduler(
	tasks store.TaskStore,
	health HealthGate,
	runner Runner,
	cfg config.WorkerConfig,
	log *slog.Logger,
) (*Scheduler, error) {
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if health == nil {
		return nil, errors.New("health gate cannot be nil")
	}
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	pollInterval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	return &Scheduler{
		tasks:         tasks,
		health:        health,
		runner:        runner,
		logger:        log.With(slog.String("component", "dispatch_scheduler")),
		pollInterval:  pollInterval,
		maxConcurrent: maxConcurrent,
		stuckTaskAge:  time.Duration(cfg.StuckTaskAgeMinutes) * time.Minute,
		tickCh:        make(chan struct{}, 1),
	}, nil
}

// Start launches the polling loop. The first dispatch happens immediately
// rather than one interval in.
func (s *Scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.loopWG.Add(1)
	go s.loop(ctx)

	s.logger.Info("dispatch scheduler started",
		"poll_interval", s.pollInterval.String(),
		"max_concurrent", s.maxConcurrent)
	return nil
}

// Stop halts polling and waits for in-flight tasks to settle. Dispatched
// attempts are never cancelled mid-flight; ctx only bounds how long Stop
// waits for them.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.loopWG.Wait()
		s.taskWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("dispatch scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerDispatch forces an immediate health probe and queues an
// out-of-band dispatch tick. Returns the fresh gate verdict.
func (s *Scheduler) TriggerDispatch(ctx context.Context) (bool, error) {
	if !s.running.Load() {
		return false, errors.New("scheduler is not running")
	}

	available := s.health.ForceCheck(ctx)

	select {
	case s.tickCh <- struct{}{}:
	default:
		// a tick is already queued
	}

	s.logger.Info("manual dispatch triggered", "inference_available", available)
	return available, nil
}

// Status reports the scheduler's observable state.
func (s *Scheduler) Status() WorkerStatus {
	return WorkerStatus{
		IsRunning:           s.running.Load(),
		CurrentlyProcessing: int(s.inFlight.Load()),
		MaxConcurrent:       s.maxConcurrent,
		PollIntervalMs:      s.pollInterval.Milliseconds(),
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.dispatchOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchOnce(ctx)
		case <-s.tickCh:
			s.dispatchOnce(ctx)
		}
	}
}

// dispatchOnce runs a single dispatch tick: sweep stuck tasks, compute
// free capacity, fill the video lane first, then the text lane if the
// health gate is open, and launch everything picked. The tick never
// blocks on task completion.
func (s *Scheduler) dispatchOnce(ctx context.Context) {
	s.reclaimStuck(ctx)

	available := s.maxConcurrent - int(s.inFlight.Load())
	if available <= 0 {
		s.logger.DebugContext(ctx, "dispatch skipped, no free capacity",
			"in_flight", s.inFlight.Load())
		return
	}

	videoTasks, err := s.tasks.PickEligible(ctx, available, domain.TaskTypeVideoAnalysis)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to pick video tasks", "error", err)
		videoTasks = nil
	}

	var textTasks []*domain.AnalysisTask
	if remaining := available - len(videoTasks); remaining > 0 {
		if s.health.IsAvailable(ctx) {
			inferenceGateOpen.Set(1)
			textTasks, err = s.tasks.PickEligible(ctx, remaining,
				domain.TaskTypeFullAnalysis, domain.TaskTypeSummary)
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to pick text tasks", "error", err)
				textTasks = nil
			}
		} else {
			inferenceGateOpen.Set(0)
			s.logger.WarnContext(ctx, "inference service unavailable, text lane gated off")
		}
	}

	if len(videoTasks)+len(textTasks) == 0 {
		s.logger.DebugContext(ctx, "dispatch tick found no eligible tasks")
		return
	}

	s.logger.InfoContext(ctx, "dispatching tasks",
		"video", len(videoTasks),
		"text", len(textTasks),
		"capacity", available)

	g := new(errgroup.Group)
	s.launch(g, videoTasks, laneVideo)
	s.launch(g, textTasks, laneText)

	go func() {
		if err := g.Wait(); err != nil {
			s.logger.Error("dispatch batch settled with bookkeeping errors", "error", err)
		}
	}()
}

// launch starts one goroutine per task. The in-flight counter is bumped
// before the goroutine starts so a tick racing with the launches cannot
// oversubscribe the cap, and released in the same defer that settles the
// slot regardless of outcome.
func (s *Scheduler) launch(g *errgroup.Group, batch []*domain.AnalysisTask, lane string) {
	for _, t := range batch {
		s.inFlight.Add(1)
		tasksInFlight.Inc()
		tasksDispatched.WithLabelValues(lane).Inc()
		s.taskWG.Add(1)

		g.Go(func() error {
			defer func() {
				s.inFlight.Add(-1)
				tasksInFlight.Dec()
				s.taskWG.Done()
			}()

			// Attempts run on a fresh context so shutdown does not abort
			// them mid-write; Stop waits for them instead.
			taskCtx := logger.WithLogger(context.Background(), s.logger)
			if err := s.runner.Process(taskCtx, t); err != nil {
				s.logger.Error("task processing failed to settle",
					"task_id", t.ID,
					"error", err)
				return err
			}
			return nil
		})
	}
}

func (s *Scheduler) reclaimStuck(ctx context.Context) {
	if s.stuckTaskAge <= 0 {
		return
	}

	reclaimed, err := s.tasks.ReclaimStuck(ctx, s.stuckTaskAge)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to reclaim stuck tasks", "error", err)
		return
	}
	if reclaimed > 0 {
		tasksReclaimed.Add(float64(reclaimed))
		s.logger.WarnContext(ctx, "reclaimed stuck tasks",
			"count", reclaimed,
			"older_than", s.stuckTaskAge.String())
	}
}
