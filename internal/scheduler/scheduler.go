package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/jean18/front/internal/pipeline"
)

// Trigger starts one pipeline run for a logical date.
type Trigger interface {
	Trigger(ctx context.Context, logicalDate time.Time) (pipeline.Run, error)
}

// Scheduler periodically triggers pipeline runs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Trigger
	interval  time.Duration
	logger    *zap.Logger

	// ctx is the parent of every scheduled run; cancel ends runs in flight.
	ctx    context.Context
	cancel context.CancelFunc

	// now returns the logical date of a tick; replaced in tests.
	now func() time.Time
}

// New creates a new Scheduler. An interval <= 0 disables scheduling.
// Runs started by the scheduler are cancelled when ctx is done or Stop is called.
func New(ctx context.Context, runner Trigger, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
		ctx:       runCtx,
		cancel:    cancel,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: no interval configured; runs are manual only")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.tick)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	logical := s.now()
	s.logger.Info("scheduler: triggering pipeline run", zap.Time("logical_date", logical))

	run, err := s.runner.Trigger(s.ctx, logical)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		s.logger.Warn("scheduler: previous run still active; skipping tick")
		return
	}
	if err != nil {
		s.logger.Error("scheduler: trigger failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduler: run completed", zap.String("run_id", run.ID), zap.String("state", string(run.State)))
}

// Stop cancels the run in flight, then stops the scheduler and any future jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
