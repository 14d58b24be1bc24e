package notesync

import (
	"sync"
	"time"

	"github.com/fridgenotes/notesync.go/pkg/opqueue"
)

// Status is the externally observable sync state, consumed by presentation
// collaborators for user feedback. It is derived, never persisted: rebuilt
// from the queue and monitor on startup and recomputed on demand.
type Status struct {
	Online     bool              `json:"online"`
	Syncing    bool              `json:"syncing"`
	QueueSize  int               `json:"queue_size"`
	LastSyncAt time.Time         `json:"last_sync_at,omitzero"`
	Errors     []opqueue.Failure `json:"errors,omitempty"`
}

// Status reports the current sync state.
func (e *Engine) Status() Status {
	syncing, lastSync, errs := e.status.snapshot()
	return Status{
		Online:     e.monitor.Online(),
		Syncing:    syncing,
		QueueSize:  e.queue.Len(),
		LastSyncAt: lastSync,
		Errors:     errs,
	}
}

// statusTracker holds the mutable slice of status the engine itself owns:
// the syncing indicator, last sync time, and the recent permanent failures.
// syncing is a counter, not a bool: drain calls can overlap (the queue
// coalesces them into one running drain), and a coalesced caller returning
// early must not clear the indicator while the owning drain still runs.
type statusTracker struct {
	mu       sync.Mutex
	syncing  int
	lastSync time.Time
	errors   []opqueue.Failure
}

func (s *statusTracker) beginSync() {
	s.mu.Lock()
	s.syncing++
	s.mu.Unlock()
}

func (s *statusTracker) endSync() {
	s.mu.Lock()
	s.syncing--
	s.mu.Unlock()
}

func (s *statusTracker) touch() {
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
}

// record keeps the most recent failures, oldest evicted first.
func (s *statusTracker) record(f opqueue.Failure) {
	s.mu.Lock()
	s.errors = append(s.errors, f)
	if len(s.errors) > maxRecentErrors {
		s.errors = s.errors[len(s.errors)-maxRecentErrors:]
	}
	s.mu.Unlock()
}

func (s *statusTracker) snapshot() (syncing bool, lastSync time.Time, errs []opqueue.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing > 0, s.lastSync, append([]opqueue.Failure(nil), s.errors...)
}
