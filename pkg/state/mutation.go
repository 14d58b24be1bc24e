package state

import (
	"encoding/json"

	"github.com/fridgenotes/notesync.go/pkg/models"
	"github.com/fridgenotes/notesync.go/pkg/opqueue"
)

// Mutation describes one local edit. Exactly the fields relevant to its
// Kind are set.
type Mutation struct {
	Kind   opqueue.Kind
	NoteID string

	// Note is the full entity for create operations. Its ID is assigned a
	// provisional value during the optimistic apply when unset.
	Note *models.Note

	// Fields is the partial field set for update operations, keyed by the
	// entity's JSON field names.
	Fields map[string]any

	// ItemID names the checklist item for toggle operations.
	ItemID string

	// Label is the label for addLabel/removeLabel operations.
	Label *models.Label

	// Order is the full manual ordering for reorder operations.
	Order []string

	// Payload carries custom operations opaquely.
	Payload json.RawMessage
}

// Undo captures exactly what an optimistic apply changed so a synchronous
// failure can revert it. Zero value is a no-op.
type Undo struct {
	noteID    string
	created   bool
	prev      *models.Note
	positions map[string]int
}

// IsZero reports whether rolling back would change nothing.
func (u Undo) IsZero() bool {
	return !u.created && u.prev == nil && u.positions == nil
}
