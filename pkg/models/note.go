// Package models holds the domain entities cached by the sync engine and
// the typed payloads of realtime events.
package models

import "time"

// NoteType distinguishes free-text notes from checklists.
type NoteType string

const (
	NoteTypeText      NoteType = "text"
	NoteTypeChecklist NoteType = "checklist"
)

// Note is the client-side view of a note. The authoritative copy lives
// server-side; the engine keeps this cache consistent with it.
type Note struct {
	ID       NoteID   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Content  string   `json:"content,omitempty"`
	Type     NoteType `json:"note_type"`
	Color    string   `json:"color,omitempty"`
	Position int      `json:"position"`
	Pinned   bool     `json:"pinned"`
	Archived bool     `json:"archived"`

	Items    []ChecklistItem `json:"items,omitempty"`
	Labels   []Label         `json:"labels,omitempty"`
	Reminder *Reminder       `json:"reminder,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Clone returns a deep copy. The coordinator hands out clones so callers
// can never mutate the shared cache behind its back.
func (n Note) Clone() Note {
	c := n
	if n.Items != nil {
		c.Items = make([]ChecklistItem, len(n.Items))
		copy(c.Items, n.Items)
	}
	if n.Labels != nil {
		c.Labels = make([]Label, len(n.Labels))
		copy(c.Labels, n.Labels)
	}
	if n.Reminder != nil {
		r := *n.Reminder
		c.Reminder = &r
	}
	return c
}

// ChecklistItem is one entry of a checklist note.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Order     int    `json:"order"`
	Category  string `json:"category,omitempty"`
}

// Label is a user-defined tag attached to notes.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Reminder carries the reminder state of a note.
type Reminder struct {
	At           time.Time  `json:"at"`
	Completed    bool       `json:"completed"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
}
