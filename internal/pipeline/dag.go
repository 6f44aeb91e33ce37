package pipeline

import (
	"context"
	"errors"
	"math"
	"time"
)

// Status is the final state of a task instance.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusSkipped        Status = "skipped"
	StatusFailed         Status = "failed"
	StatusUpstreamFailed Status = "upstream_failed"
)

// RunState is the state of a whole run.
type RunState string

const (
	RunRunning RunState = "running"
	RunSuccess RunState = "success"
	RunFailed  RunState = "failed"
)

var (
	// ErrRunInProgress is returned by Trigger while another run is active.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrMissingUpstream is returned when a task cannot find its upstream value.
	ErrMissingUpstream = errors.New("missing upstream value")
)

// Result is what a task hands back when it did not fail. A skipped result
// short-circuits the remaining tasks of its group without failing the run.
type Result struct {
	Status  Status
	Message string
	Value   any
}

// Done is a successful result carrying v for downstream tasks.
func Done(v any) Result {
	return Result{Status: StatusSuccess, Value: v}
}

// Skip is a non-error result that skips the rest of the group.
func Skip(reason string) Result {
	return Result{Status: StatusSkipped, Message: reason}
}

// TaskFunc runs one task. A returned error is retried per the RetryPolicy.
type TaskFunc func(ctx context.Context, rc *RunContext) (Result, error)

// Task is a named unit of work inside a group.
type Task struct {
	ID    string
	Run   TaskFunc
	Retry *RetryPolicy
}

// Group is an ordered chain of tasks.
type Group struct {
	ID    string
	Tasks []Task
}

// DAG is an ordered chain of groups.
type DAG struct {
	ID     string
	Groups []Group
}

// TaskKey returns the qualified task id, e.g. "weather_obs.start_param".
func TaskKey(group, task string) string {
	if group == "" {
		return task
	}
	return group + "." + task
}

// RunContext carries the per-run parameters and the values returned by
// already finished tasks.
type RunContext struct {
	RunID       string
	LogicalDate time.Time

	values map[string]any
}

func newRunContext(runID string, logicalDate time.Time) *RunContext {
	return &RunContext{
		RunID:       runID,
		LogicalDate: logicalDate,
		values:      make(map[string]any),
	}
}

// Pull returns the value produced by the task with the given key.
func (rc *RunContext) Pull(key string) (any, bool) {
	v, ok := rc.values[key]
	return v, ok
}

func (rc *RunContext) push(key string, v any) {
	rc.values[key] = v
}

// RetryPolicy controls how often a failing task is retried and how long to wait.
type RetryPolicy struct {
	Retries     int
	Delay       time.Duration
	Exponential bool
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is 3 retries, one minute apart, doubling each time.
var DefaultRetryPolicy = RetryPolicy{
	Retries:     3,
	Delay:       time.Minute,
	Exponential: true,
	MaxDelay:    time.Hour,
}

// Backoff returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Delay
	if p.Exponential {
		for i := 1; i < attempt; i++ {
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				break
			}
			if delay > math.MaxInt64/2 {
				delay = math.MaxInt64
				break
			}
			delay *= 2
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// TaskInstance records one task's execution within a run.
type TaskInstance struct {
	Key       string    `json:"key"`
	Group     string    `json:"group,omitempty"`
	Task      string    `json:"task"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	Message   string    `json:"message,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Run is one execution of a DAG.
type Run struct {
	ID          string         `json:"id"`
	DAGID       string         `json:"dagId"`
	LogicalDate time.Time      `json:"logicalDate"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     time.Time      `json:"endedAt,omitempty"`
	State       RunState       `json:"state"`
	Tasks       []TaskInstance `json:"tasks"`
}

// Task returns the instance with the given key.
func (r Run) Task(key string) (TaskInstance, bool) {
	for _, ti := range r.Tasks {
		if ti.Key == key {
			return ti, true
		}
	}
	return TaskInstance{}, false
}
