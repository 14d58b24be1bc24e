package models

// Realtime event names. Incoming names carry the _received suffix because
// the server rebroadcasts client emissions under them; outgoing names are
// the bare forms.
const (
	EventNoteUpdated    = "note_update_received"
	EventItemToggled    = "checklist_item_toggle_received"
	EventNotesReordered = "notes_reorder_received"
	EventNoteShared     = "note_share_received"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"

	EmitNoteUpdated    = "note_updated"
	EmitItemToggled    = "checklist_item_toggled"
	EmitNotesReordered = "notes_reordered"
	EmitJoinNote       = "join_note"
	EmitLeaveNote      = "leave_note"
)

// Event is implemented by every typed realtime payload.
type Event interface {
	EventName() string
}

// NoteUpdatedEvent announces a partial update to one note.
type NoteUpdatedEvent struct {
	NoteID     string         `json:"note_id"`
	UserID     string         `json:"user_id"`
	UpdateType string         `json:"update_type,omitempty"`
	Fields     map[string]any `json:"data,omitempty"`
}

func (NoteUpdatedEvent) EventName() string { return EventNoteUpdated }

// ItemToggledEvent announces a checklist item being checked or unchecked.
type ItemToggledEvent struct {
	NoteID    string `json:"note_id"`
	ItemID    string `json:"item_id"`
	Completed bool   `json:"completed"`
	UserID    string `json:"user_id"`
}

func (ItemToggledEvent) EventName() string { return EventItemToggled }

// NotesReorderedEvent carries a full manual ordering from another session
// of the same user. NoteIDs lists the ids visible to the sender at send
// time, most significant first.
type NotesReorderedEvent struct {
	UserID  string   `json:"user_id"`
	NoteIDs []string `json:"note_ids"`
}

func (NotesReorderedEvent) EventName() string { return EventNotesReordered }

// NoteSharedEvent announces a note being shared with another user.
type NoteSharedEvent struct {
	NoteID           string `json:"note_id"`
	SharedWithUserID string `json:"shared_with_user_id"`
	AccessLevel      string `json:"access_level"`
}

func (NoteSharedEvent) EventName() string { return EventNoteShared }

// PresenceEvent announces another session joining or leaving a note room.
type PresenceEvent struct {
	NoteID string `json:"note_id"`
	UserID string `json:"user_id"`
	Joined bool   `json:"-"`
}

func (e PresenceEvent) EventName() string {
	if e.Joined {
		return EventUserJoined
	}
	return EventUserLeft
}
