// Package transport defines the request boundary between the sync engine
// and the REST backend. The engine assumes nothing about the wire format:
// a call either succeeds with an opaque result or fails with a typed error.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fridgenotes/notesync.go/pkg/opqueue"
)

// Client executes mutations against the backend, one method per operation
// kind. Implementations own the HTTP (or other) plumbing; the engine only
// inspects the returned error's failure kind.
type Client interface {
	CreateNote(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	UpdateNote(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	DeleteNote(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	ToggleItem(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	AddLabel(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	RemoveLabel(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	Reorder(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
	Custom(ctx context.Context, op opqueue.Operation) (json.RawMessage, error)
}

// Dispatch routes op to the Client method matching its kind.
func Dispatch(ctx context.Context, c Client, op opqueue.Operation) (json.RawMessage, error) {
	switch op.Kind {
	case opqueue.KindCreate:
		return c.CreateNote(ctx, op)
	case opqueue.KindUpdate:
		return c.UpdateNote(ctx, op)
	case opqueue.KindDelete:
		return c.DeleteNote(ctx, op)
	case opqueue.KindToggleItem:
		return c.ToggleItem(ctx, op)
	case opqueue.KindAddLabel:
		return c.AddLabel(ctx, op)
	case opqueue.KindRemoveLabel:
		return c.RemoveLabel(ctx, op)
	case opqueue.KindReorder:
		return c.Reorder(ctx, op)
	case opqueue.KindCustom:
		return c.Custom(ctx, op)
	default:
		return nil, NewRejected(0, fmt.Sprintf("unknown operation kind %q", op.Kind))
	}
}
