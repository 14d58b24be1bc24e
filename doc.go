// Package notesync is the client-side offline-sync and realtime
// coordination engine for FridgeNotes.
//
// The Engine lets a user keep editing notes while disconnected: mutations
// apply optimistically to the local state coordinator, are durably queued
// when they cannot complete synchronously, and are replayed with backoff
// once connectivity returns. A realtime channel delivers concurrent edits
// from other sessions, which the coordinator merges into the same state
// store — including a pinned-aware merge for collaborative reordering.
//
// All components are explicitly constructed and owned by the Engine; there
// is no package-level shared state.
package notesync
