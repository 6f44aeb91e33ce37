package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jean18/front/internal/pipeline"
)

type fakeTrigger struct {
	mu    sync.Mutex
	dates []time.Time
	err   error
}

func (f *fakeTrigger) Trigger(_ context.Context, logical time.Time) (pipeline.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, logical)
	if f.err != nil {
		return pipeline.Run{}, f.err
	}
	return pipeline.Run{ID: "r1", LogicalDate: logical, State: pipeline.RunSuccess}, nil
}

func (f *fakeTrigger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dates)
}

func TestStartWithoutIntervalIsNoop(t *testing.T) {
	ft := &fakeTrigger{}
	s := New(context.Background(), ft, 0, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if s.scheduler.IsRunning() {
		t.Fatalf("scheduler should not run without an interval")
	}
}

func TestTickUsesLogicalDate(t *testing.T) {
	ft := &fakeTrigger{}
	s := New(context.Background(), ft, time.Hour, nil)
	fixed := time.Date(2024, 8, 30, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.tick()

	if ft.calls() != 1 || !ft.dates[0].Equal(fixed) {
		t.Fatalf("dates = %v", ft.dates)
	}
}

func TestTickToleratesRunInProgress(t *testing.T) {
	ft := &fakeTrigger{err: pipeline.ErrRunInProgress}
	s := New(context.Background(), ft, time.Hour, nil)
	s.tick()
	ft.err = errors.New("boom")
	s.tick()
	if ft.calls() != 2 {
		t.Fatalf("calls = %d", ft.calls())
	}
}

func TestStartRunsImmediately(t *testing.T) {
	ft := &fakeTrigger{}
	s := New(context.Background(), ft, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for ft.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first tick did not fire")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// blockingTrigger holds each run until its context is cancelled.
type blockingTrigger struct {
	started chan struct{}
	ended   chan error
}

func (b *blockingTrigger) Trigger(ctx context.Context, logical time.Time) (pipeline.Run, error) {
	close(b.started)
	select {
	case <-ctx.Done():
		b.ended <- ctx.Err()
		return pipeline.Run{State: pipeline.RunFailed}, nil
	case <-time.After(5 * time.Second):
		b.ended <- nil
		return pipeline.Run{State: pipeline.RunSuccess}, nil
	}
}

func TestCancelledContextEndsRunInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bt := &blockingTrigger{started: make(chan struct{}), ended: make(chan error, 1)}
	s := New(ctx, bt, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-bt.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first tick did not fire")
	}

	cancel()
	select {
	case err := <-bt.ended:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run ended with %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not observe cancellation")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop blocked after cancellation")
	}
}

func TestStopCancelsRunInFlight(t *testing.T) {
	bt := &blockingTrigger{started: make(chan struct{}), ended: make(chan error, 1)}
	s := New(context.Background(), bt, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-bt.started

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Stop took %v", elapsed)
	}
	if err := <-bt.ended; !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}
}

func TestTickAfterCancelDoesNotTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ft := &fakeTrigger{}
	s := New(ctx, ft, time.Hour, nil)
	cancel()
	s.tick()
	if ft.calls() != 0 {
		t.Fatalf("calls = %d after cancel", ft.calls())
	}
}
