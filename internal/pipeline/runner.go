package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jean18/front/internal/metrics"
)

// RunHistory stores runs as they progress.
type RunHistory interface {
	SaveRun(dagID string, run Run)
}

// Runner executes a DAG one run at a time.
type Runner struct {
	dag     *DAG
	policy  RetryPolicy
	history RunHistory
	logger  *zap.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active bool
}

// NewRunner creates a Runner. history may be nil.
func NewRunner(dag *DAG, policy RetryPolicy, history RunHistory, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		dag:     dag,
		policy:  policy,
		history: history,
		logger:  logger,
		sleep:   sleepWithContext,
	}
}

// DAGID returns the id of the DAG this runner executes.
func (r *Runner) DAGID() string {
	return r.dag.ID
}

// Start begins a run for logicalDate in the background and returns its id
// and a channel that receives the finished run. Only one run may be active
// at a time.
func (r *Runner) Start(ctx context.Context, logicalDate time.Time) (string, <-chan Run, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return "", nil, ErrRunInProgress
	}
	r.active = true
	r.mu.Unlock()

	id := uuid.NewString()
	done := make(chan Run, 1)
	go func() {
		run := r.execute(ctx, id, logicalDate)
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		done <- run
	}()
	return id, done, nil
}

// Trigger executes one run for logicalDate and returns it once finished.
func (r *Runner) Trigger(ctx context.Context, logicalDate time.Time) (Run, error) {
	_, done, err := r.Start(ctx, logicalDate)
	if err != nil {
		return Run{}, err
	}
	return <-done, nil
}

func (r *Runner) execute(ctx context.Context, id string, logicalDate time.Time) Run {
	run := Run{
		ID:          id,
		DAGID:       r.dag.ID,
		LogicalDate: logicalDate,
		StartedAt:   time.Now().UTC(),
		State:       RunRunning,
	}
	logger := r.logger.With(zap.String("run_id", run.ID), zap.String("dag", r.dag.ID))
	logger.Info("run started", zap.Time("logical_date", logicalDate))
	r.save(run)

	rc := newRunContext(run.ID, logicalDate)
	failed := false

	for _, group := range r.dag.Groups {
		skipRest := false
		for _, task := range group.Tasks {
			ti := TaskInstance{
				Key:       TaskKey(group.ID, task.ID),
				Group:     group.ID,
				Task:      task.ID,
				StartedAt: time.Now().UTC(),
			}

			switch {
			case failed:
				ti.Status = StatusUpstreamFailed
			case skipRest:
				ti.Status = StatusSkipped
				ti.Message = "upstream task skipped"
			default:
				res, attempts, err := r.runTask(ctx, logger, task, ti.Key, rc)
				ti.Attempts = attempts
				if err != nil {
					ti.Status = StatusFailed
					ti.Message = err.Error()
					failed = true
					logger.Error("task failed", zap.String("task", ti.Key), zap.Int("attempts", attempts), zap.Error(err))
					break
				}
				ti.Status = res.Status
				if ti.Status == "" {
					ti.Status = StatusSuccess
				}
				ti.Message = res.Message
				if ti.Status == StatusSkipped {
					skipRest = true
					logger.Info("task skipped; skipping downstream tasks", zap.String("task", ti.Key), zap.String("reason", res.Message))
					break
				}
				rc.push(ti.Key, res.Value)
			}

			ti.EndedAt = time.Now().UTC()
			metrics.ObserveTask(group.ID, task.ID, string(ti.Status), ti.EndedAt.Sub(ti.StartedAt))
			run.Tasks = append(run.Tasks, ti)
			r.save(run)
		}
	}

	run.EndedAt = time.Now().UTC()
	run.State = RunSuccess
	if failed {
		run.State = RunFailed
	}
	metrics.ObserveRun(string(run.State))
	r.save(run)
	logger.Info("run finished", zap.String("state", string(run.State)), zap.Duration("duration", run.EndedAt.Sub(run.StartedAt)))
	return run
}

func (r *Runner) runTask(ctx context.Context, logger *zap.Logger, task Task, key string, rc *RunContext) (Result, int, error) {
	policy := r.policy
	if task.Retry != nil {
		policy = *task.Retry
	}

	for attempt := 1; ; attempt++ {
		res, err := task.Run(ctx, rc)
		if err == nil {
			return res, attempt, nil
		}
		if attempt > policy.Retries || ctx.Err() != nil {
			return Result{}, attempt, err
		}

		delay := policy.Backoff(attempt)
		logger.Warn("task attempt failed; retrying",
			zap.String("task", key),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return Result{}, attempt, err
		}
	}
}

func (r *Runner) save(run Run) {
	if r.history == nil {
		return
	}
	cp := run
	cp.Tasks = append([]TaskInstance(nil), run.Tasks...)
	r.history.SaveRun(r.dag.ID, cp)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
