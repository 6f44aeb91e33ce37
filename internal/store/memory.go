package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jean18/front/internal/pipeline"
)

var (
	// ErrNotFound is returned when no run is recorded for a DAG or window.
	ErrNotFound = errors.New("no runs recorded")
)

// RunHistory holds the runs of one DAG ordered by start time.
type RunHistory struct {
	Runs []pipeline.Run
}

// MemoryRunStore is a concurrency-safe in-memory run history.
type MemoryRunStore struct {
	mu sync.RWMutex

	// key: dag id
	data map[string]*RunHistory

	// max number of runs kept per DAG
	maxHistory int
}

// NewMemoryRunStore creates a MemoryRunStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryRunStore(maxHistory int) *MemoryRunStore {
	return &MemoryRunStore{
		data:       make(map[string]*RunHistory),
		maxHistory: maxHistory,
	}
}

// SaveRun inserts the run or replaces an earlier copy with the same id.
func (s *MemoryRunStore) SaveRun(dagID string, run pipeline.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[dagID]
	if !ok {
		history = &RunHistory{}
		s.data[dagID] = history
	}

	for i := len(history.Runs) - 1; i >= 0; i-- {
		if history.Runs[i].ID == run.ID {
			history.Runs[i] = run
			return
		}
	}

	history.Runs = append(history.Runs, run)

	if s.maxHistory > 0 && len(history.Runs) > s.maxHistory {
		over := len(history.Runs) - s.maxHistory
		history.Runs = history.Runs[over:]
	}
}

// GetLatest returns the most recently started run of a DAG.
func (s *MemoryRunStore) GetLatest(dagID string) (pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[dagID]
	if !ok || len(history.Runs) == 0 {
		return pipeline.Run{}, ErrNotFound
	}
	return history.Runs[len(history.Runs)-1], nil
}

// GetRange returns the runs whose logical date lies between from and to (inclusive).
func (s *MemoryRunStore) GetRange(dagID string, from, to time.Time) ([]pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[dagID]
	if !ok || len(history.Runs) == 0 {
		return nil, ErrNotFound
	}

	var result []pipeline.Run
	for _, run := range history.Runs {
		if !run.LogicalDate.Before(from) && !run.LogicalDate.After(to) {
			result = append(result, run)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// List returns every retained run of a DAG, oldest first.
func (s *MemoryRunStore) List(dagID string) []pipeline.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[dagID]
	if !ok {
		return nil
	}
	return append([]pipeline.Run(nil), history.Runs...)
}
