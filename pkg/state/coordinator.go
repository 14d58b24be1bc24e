// Package state holds the client's best-known view of the note collection.
// It applies optimistic local mutations immediately, rolls them back on
// confirmed failure, and merges inbound remote events. Every mutation path
// in the engine funnels through this coordinator; nothing else touches
// entity state.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fridgenotes/notesync.go/pkg/logger"
	"github.com/fridgenotes/notesync.go/pkg/models"
	"github.com/fridgenotes/notesync.go/pkg/opqueue"
)

var ErrNoteNotFound = errors.New("state: note not found")

// Coordinator is the single shared mutable resource of the engine.
type Coordinator struct {
	ownerID string
	log     logger.Logger

	mu    sync.Mutex
	notes map[string]*models.Note
}

// NewCoordinator returns an empty coordinator for the given session owner.
// The owner id gates reorder merges: only reorder events originating from
// another session of the same user are applied.
func NewCoordinator(ownerID string, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		ownerID: ownerID,
		log:     log,
		notes:   make(map[string]*models.Note),
	}
}

// Seed replaces the collection with a freshly loaded server snapshot.
func (c *Coordinator) Seed(notes []models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = make(map[string]*models.Note, len(notes))
	for _, n := range notes {
		clone := n.Clone()
		c.notes[n.ID.Value] = &clone
	}
}

// Get returns a copy of one note.
func (c *Coordinator) Get(id string) (models.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.notes[id]
	if !ok {
		return models.Note{}, false
	}
	return n.Clone(), true
}

// Notes returns copies of every note in display order: pinned first, then
// by position.
func (c *Coordinator) Notes() []models.Note {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Note, 0, len(c.notes))
	for _, n := range c.displayOrderLocked() {
		out = append(out, n.Clone())
	}
	return out
}

// Len returns the number of cached notes.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}

// ApplyOptimistic mutates local state immediately and synchronously.
// Creations with an unset id are assigned a provisional id, written back
// into m, so the caller can address the entity before the server confirms
// it. The returned Undo reverts exactly this mutation.
func (c *Coordinator) ApplyOptimistic(m *Mutation) (Undo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m.Kind {
	case opqueue.KindCreate:
		if m.Note == nil {
			return Undo{}, fmt.Errorf("state: create mutation without a note")
		}
		if m.Note.ID.IsZero() {
			m.Note.ID = models.NewProvisionalNoteID()
		}
		m.NoteID = m.Note.ID.Value
		clone := m.Note.Clone()
		c.notes[clone.ID.Value] = &clone
		return Undo{noteID: clone.ID.Value, created: true}, nil

	case opqueue.KindDelete:
		n, ok := c.notes[m.NoteID]
		if !ok {
			return Undo{}, ErrNoteNotFound
		}
		prev := n.Clone()
		delete(c.notes, m.NoteID)
		return Undo{noteID: m.NoteID, prev: &prev}, nil

	case opqueue.KindUpdate:
		n, ok := c.notes[m.NoteID]
		if !ok {
			return Undo{}, ErrNoteNotFound
		}
		prev := n.Clone()
		applyFields(n, m.Fields)
		return Undo{noteID: m.NoteID, prev: &prev}, nil

	case opqueue.KindToggleItem:
		n, ok := c.notes[m.NoteID]
		if !ok {
			return Undo{}, ErrNoteNotFound
		}
		idx := itemIndex(n.Items, m.ItemID)
		if idx < 0 {
			return Undo{}, fmt.Errorf("state: checklist item %s not found in note %s", m.ItemID, m.NoteID)
		}
		prev := n.Clone()
		n.Items[idx].Completed = !n.Items[idx].Completed
		return Undo{noteID: m.NoteID, prev: &prev}, nil

	case opqueue.KindAddLabel:
		n, ok := c.notes[m.NoteID]
		if !ok {
			return Undo{}, ErrNoteNotFound
		}
		if m.Label == nil {
			return Undo{}, fmt.Errorf("state: addLabel mutation without a label")
		}
		prev := n.Clone()
		if labelIndex(n.Labels, m.Label.ID) < 0 {
			n.Labels = append(n.Labels, *m.Label)
		}
		return Undo{noteID: m.NoteID, prev: &prev}, nil

	case opqueue.KindRemoveLabel:
		n, ok := c.notes[m.NoteID]
		if !ok {
			return Undo{}, ErrNoteNotFound
		}
		if m.Label == nil {
			return Undo{}, fmt.Errorf("state: removeLabel mutation without a label")
		}
		prev := n.Clone()
		if idx := labelIndex(n.Labels, m.Label.ID); idx >= 0 {
			n.Labels = append(n.Labels[:idx], n.Labels[idx+1:]...)
		}
		return Undo{noteID: m.NoteID, prev: &prev}, nil

	case opqueue.KindReorder:
		positions := make(map[string]int, len(c.notes))
		for id, n := range c.notes {
			positions[id] = n.Position
		}
		for i, id := range m.Order {
			if n, ok := c.notes[id]; ok {
				n.Position = i
			}
		}
		return Undo{positions: positions}, nil

	case opqueue.KindCustom:
		// Custom operations carry no local state change of their own.
		return Undo{}, nil

	default:
		return Undo{}, fmt.Errorf("state: unknown mutation kind %q", m.Kind)
	}
}

// Confirm replaces the optimistic entity with the authoritative server
// response, remapping a provisional id to the real one. The collection
// never ends up holding both.
func (c *Coordinator) Confirm(noteID string, server models.Note) {
	if server.ID.IsZero() {
		c.log.Warn("state: confirm with empty server id ignored", "note_id", noteID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if noteID != "" && noteID != server.ID.Value {
		delete(c.notes, noteID)
	}
	clone := server.Clone()
	clone.ID.Provisional = false
	c.notes[clone.ID.Value] = &clone
}

// Forget drops a note from the cache, e.g. after a confirmed delete.
func (c *Coordinator) Forget(noteID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.notes, noteID)
}

// Rollback reverts the optimistic mutation captured by u exactly.
func (c *Coordinator) Rollback(u Undo) {
	if u.IsZero() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case u.created:
		delete(c.notes, u.noteID)
	case u.prev != nil:
		prev := u.prev.Clone()
		c.notes[u.noteID] = &prev
	case u.positions != nil:
		for id, pos := range u.positions {
			if n, ok := c.notes[id]; ok {
				n.Position = pos
			}
		}
	}
}

// ApplyRemote merges an externally-sourced event into local state. It
// never performs network I/O, and a malformed event is a no-op rather than
// an error: a bad broadcast must not corrupt local state. The return value
// reports whether anything changed.
func (c *Coordinator) ApplyRemote(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case models.NoteUpdatedEvent:
		n, ok := c.notes[e.NoteID]
		if !ok {
			return false
		}
		applyFields(n, e.Fields)
		return true

	case models.ItemToggledEvent:
		n, ok := c.notes[e.NoteID]
		if !ok {
			return false
		}
		idx := itemIndex(n.Items, e.ItemID)
		if idx < 0 {
			return false
		}
		n.Items[idx].Completed = e.Completed
		return true

	case models.NotesReorderedEvent:
		return c.mergeReorderLocked(e)

	default:
		// Presence and share notifications carry no entity state.
		return false
	}
}

// mergeReorderLocked reconciles a remote manual ordering against local
// state:
//
//  1. Pinned notes are left exactly where they are; a reorder broadcast
//     never clobbers them.
//  2. Unpinned notes named by the event are re-sequenced to match the
//     remote order.
//  3. Unpinned notes the event does not mention (hidden by a filter on the
//     sending session, or mid-drag locally) keep their relative order,
//     appended after the reconciled list.
//
// Events from a different user, or with no ids, fail shape validation and
// are ignored.
func (c *Coordinator) mergeReorderLocked(e models.NotesReorderedEvent) bool {
	if e.UserID == "" || e.UserID != c.ownerID || len(e.NoteIDs) == 0 {
		c.log.Debug("state: ignoring reorder event failing shape validation",
			"user_id", e.UserID)
		return false
	}

	display := c.displayOrderLocked()

	var pinned, unpinned []*models.Note
	for _, n := range display {
		if n.Pinned {
			pinned = append(pinned, n)
		} else {
			unpinned = append(unpinned, n)
		}
	}

	listed := make(map[string]bool, len(e.NoteIDs))
	var next []*models.Note
	for _, id := range e.NoteIDs {
		n, ok := c.notes[id]
		if !ok || n.Pinned {
			continue
		}
		listed[id] = true
		next = append(next, n)
	}
	for _, n := range unpinned {
		if !listed[n.ID.Value] {
			next = append(next, n)
		}
	}

	pos := 0
	for _, n := range pinned {
		n.Position = pos
		pos++
	}
	for _, n := range next {
		n.Position = pos
		pos++
	}
	return true
}

// displayOrderLocked returns the notes pinned-first, then by position,
// with ids as the deterministic tiebreaker.
func (c *Coordinator) displayOrderLocked() []*models.Note {
	out := make([]*models.Note, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.Value < out[j].ID.Value
	})
	return out
}

// applyFields merges a partial field map over a note, last writer wins.
// Unknown keys are ignored; numeric values arrive as float64 from decoders.
func applyFields(n *models.Note, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "title":
			if v, ok := value.(string); ok {
				n.Title = v
			}
		case "content":
			if v, ok := value.(string); ok {
				n.Content = v
			}
		case "color":
			if v, ok := value.(string); ok {
				n.Color = v
			}
		case "note_type":
			if v, ok := value.(string); ok {
				n.Type = models.NoteType(v)
			}
		case "pinned":
			if v, ok := value.(bool); ok {
				n.Pinned = v
			}
		case "archived":
			if v, ok := value.(bool); ok {
				n.Archived = v
			}
		case "position":
			if v, ok := asInt(value); ok {
				n.Position = v
			}
		}
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func itemIndex(items []models.ChecklistItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func labelIndex(labels []models.Label, id string) int {
	for i := range labels {
		if labels[i].ID == id {
			return i
		}
	}
	return -1
}
