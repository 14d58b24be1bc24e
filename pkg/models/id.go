package models

import "github.com/gofrs/uuid"

// NoteID is a tagged identifier: either a provisional, client-generated id
// for a note created while offline, or the confirmed server-assigned id.
// Keeping the tag explicit makes the provisional-to-confirmed remap a typed
// operation instead of a string convention.
type NoteID struct {
	Value       string `json:"value"`
	Provisional bool   `json:"provisional,omitempty"`
}

// NewProvisionalNoteID returns a fresh client-generated id for an entity
// that has not been confirmed by the server yet.
func NewProvisionalNoteID() NoteID {
	return NoteID{
		Value:       uuid.Must(uuid.NewV4()).String(),
		Provisional: true,
	}
}

// ConfirmedNoteID wraps a server-assigned id.
func ConfirmedNoteID(value string) NoteID {
	return NoteID{Value: value}
}

func (id NoteID) IsZero() bool {
	return id.Value == ""
}

func (id NoteID) String() string {
	return id.Value
}
