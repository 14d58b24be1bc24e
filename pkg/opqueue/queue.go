package opqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/fridgenotes/notesync.go/pkg/backoff"
	"github.com/fridgenotes/notesync.go/pkg/kv"
	"github.com/fridgenotes/notesync.go/pkg/logger"
)

// StorageKey is the fixed namespaced key under which the queue snapshot is
// persisted: a JSON array of Operation records.
const StorageKey = "notesync/pending-operations"

const (
	DefaultCapacity    = 200
	DefaultMaxAttempts = 3
)

// Executor attempts one queued operation against the transport boundary.
type Executor func(ctx context.Context, op Operation) error

// Options configures a Queue. Zero values fall back to defaults.
type Options struct {
	// Key overrides StorageKey; used by tests.
	Key string

	// Capacity bounds the queue length. When a new operation would exceed
	// it, the oldest entries are evicted first.
	Capacity int

	// MaxAttempts is the retry budget per operation.
	MaxAttempts int

	// Backoff delays consecutive drain passes.
	Backoff backoff.Policy

	// Terminal classifies an executor error as non-retryable. Terminal
	// failures drop the operation immediately instead of burning the
	// remaining retry budget on a verdict that will not change.
	Terminal func(error) bool

	// OnDrop is invoked once for every operation permanently dropped with
	// a failure, whether by retry exhaustion or a terminal error.
	OnDrop func(Failure)

	Logger logger.Logger
}

// Queue is a durable FIFO log of pending operations. All contents are
// persisted through the kv.Store on every mutation, so the queue survives
// process restarts.
type Queue struct {
	store   kv.Store
	key     string
	cap     int
	max     int
	retry   backoff.Policy
	term    func(error) bool
	onDrop  func(Failure)
	log     logger.Logger
	nowFunc func() time.Time

	mu       sync.Mutex
	items    []Operation
	draining bool
}

// New loads any persisted snapshot from the store and returns the queue.
// Missing or malformed persisted data is treated as an empty queue, never
// as a fatal error.
func New(store kv.Store, opts Options) *Queue {
	q := &Queue{
		store:   store,
		key:     opts.Key,
		cap:     opts.Capacity,
		max:     opts.MaxAttempts,
		retry:   opts.Backoff,
		term:    opts.Terminal,
		onDrop:  opts.OnDrop,
		log:     opts.Logger,
		nowFunc: time.Now,
	}
	if q.key == "" {
		q.key = StorageKey
	}
	if q.cap <= 0 {
		q.cap = DefaultCapacity
	}
	if q.max <= 0 {
		q.max = DefaultMaxAttempts
	}
	if q.retry == nil {
		q.retry = backoff.NewExponential()
	}
	if q.log == nil {
		q.log = logger.Nop()
	}

	q.load()
	return q
}

func (q *Queue) load() {
	data, err := q.store.Get(q.key)
	if err != nil {
		if err != kv.ErrNotFound {
			q.log.Warn("opqueue: failed to read persisted queue, starting empty", "error", err)
		}
		return
	}

	var items []Operation
	if err := json.Unmarshal(data, &items); err != nil {
		q.log.Warn("opqueue: persisted queue is malformed, starting empty", "error", err)
		return
	}

	if len(items) > q.cap {
		items = items[len(items)-q.cap:]
	}
	q.items = items
}

// Enqueue appends op, assigning an operation id and timestamp if unset.
// If the queue is full the oldest entries are evicted: the newest
// operations are the most actionable and are never silently dropped.
func (q *Queue) Enqueue(op Operation) Operation {
	if op.ID == "" {
		op.ID = uuid.Must(uuid.NewV4()).String()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = q.nowFunc()
	}
	op.RetryCount = 0

	q.mu.Lock()
	q.items = append(q.items, op)
	if over := len(q.items) - q.cap; over > 0 {
		evicted := q.items[:over]
		q.items = append([]Operation(nil), q.items[over:]...)
		for _, e := range evicted {
			q.log.Warn("opqueue: capacity exceeded, evicting oldest operation",
				"operation_id", e.ID, "kind", e.Kind)
		}
	}
	q.persistLocked()
	q.mu.Unlock()

	return op
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending operations in enqueue order.
func (q *Queue) Snapshot() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation(nil), q.items...)
}

// Clear discards every pending operation. User-initiated only.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.persistLocked()
	q.mu.Unlock()
}

// Drain replays pending operations in enqueue order. A failed operation is
// re-appended behind the remaining queue with its retry count incremented,
// so one poison operation costs a single extra pass per retry instead of
// blocking everything behind it; the price is that it may complete after
// operations enqueued later. Once an operation reaches the retry budget, or
// fails terminally, it is dropped and reported through OnDrop.
//
// Only one Drain runs at a time; a call made while one is in flight is a
// no-op. Operations enqueued during a pass are picked up by the next pass.
func (q *Queue) Drain(ctx context.Context, exec Executor) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for pass := 0; ; pass++ {
		batch := q.Snapshot()
		if len(batch) == 0 {
			return nil
		}

		if pass > 0 {
			delay, ok := q.retry.NextDelay(pass-1, nil)
			if !ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		requeued := false
		for _, op := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := exec(ctx, op)
			if err == nil {
				q.remove(op.ID)
				continue
			}

			op.RetryCount++
			if (q.term != nil && q.term(err)) || op.RetryCount >= q.max {
				q.remove(op.ID)
				q.drop(op, err)
				continue
			}

			q.requeue(op)
			requeued = true
		}

		if !requeued {
			return nil
		}
	}
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	for i, op := range q.items {
		if op.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.persistLocked()
	q.mu.Unlock()
}

// requeue moves the failed operation to the tail with its updated retry count.
func (q *Queue) requeue(op Operation) {
	q.mu.Lock()
	for i, cur := range q.items {
		if cur.ID == op.ID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.items = append(q.items, op)
	q.persistLocked()
	q.mu.Unlock()
}

func (q *Queue) drop(op Operation, err error) {
	q.log.Error("opqueue: dropping operation",
		"operation_id", op.ID, "kind", op.Kind, "retries", op.RetryCount, "error", err)
	if q.onDrop != nil {
		q.onDrop(Failure{
			OperationKind: op.Kind,
			Message:       err.Error(),
			Timestamp:     q.nowFunc(),
		})
	}
}

func (q *Queue) persistLocked() {
	data, err := json.Marshal(q.items)
	if err != nil {
		q.log.Error("opqueue: failed to serialize queue", "error", err)
		return
	}
	if err := q.store.Set(q.key, data); err != nil {
		q.log.Error("opqueue: failed to persist queue", "error", err)
	}
}
