// Package opqueue implements the durable, capacity-bounded queue of pending
// mutations that the engine replays once connectivity returns.
package opqueue

import (
	"encoding/json"
	"time"
)

// Kind enumerates the mutation kinds the transport boundary understands.
type Kind string

const (
	KindCreate      Kind = "create"
	KindUpdate      Kind = "update"
	KindDelete      Kind = "delete"
	KindToggleItem  Kind = "toggleItem"
	KindAddLabel    Kind = "addLabel"
	KindRemoveLabel Kind = "removeLabel"
	KindReorder     Kind = "reorder"
	KindCustom      Kind = "custom"
)

// Operation is one queued mutation. The payload is opaque to the queue;
// the executor knows how to interpret it per kind.
type Operation struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	NoteID     string          `json:"note_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// Failure records an operation that was dropped after exhausting its retry
// budget or failing terminally. Surfaced through the engine's sync status.
type Failure struct {
	OperationKind Kind      `json:"operation_kind"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}
