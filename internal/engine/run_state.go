package engine

import (
	"sync"
	"time"

	"github.com/daydemir/toil/internal/tracker"
)

// ItemResult is one finished item's entry in the run summary.
type ItemResult struct {
	ID       int
	Title    string
	Attempts int
	Summary  string
}

// RunState tracks one invocation's outcomes. Only current is shared with the
// interrupt finalizer, so it sits behind the mutex; the result slices are
// appended to by the processing goroutine alone.
type RunState struct {
	Branch    string
	StartedAt time.Time

	Solved  []ItemResult
	Failed  []ItemResult
	Skipped []ItemResult

	mu      sync.Mutex
	current *tracker.WorkItem
}

// NewRunState creates the state for one invocation.
func NewRunState(startedAt time.Time) *RunState {
	return &RunState{StartedAt: startedAt}
}

// SetCurrent marks the item now being processed.
func (s *RunState) SetCurrent(item *tracker.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = item
}

// ClearCurrent marks no item as in flight. Called the moment an item reaches
// a terminal label state.
func (s *RunState) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Current returns the in-flight item, or nil.
func (s *RunState) Current() *tracker.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TakeCurrent atomically returns and clears the in-flight item. A second
// caller gets nil, which keeps interrupt finalization single-shot.
func (s *RunState) TakeCurrent() *tracker.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.current
	s.current = nil
	return item
}
