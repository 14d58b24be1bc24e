package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgenotes/notesync.go/pkg/models"
	"github.com/fridgenotes/notesync.go/pkg/opqueue"
)

const owner = "user-1"

func seeded(notes ...models.Note) *Coordinator {
	c := NewCoordinator(owner, nil)
	c.Seed(notes)
	return c
}

func note(id string, position int, pinned bool) models.Note {
	return models.Note{
		ID:       models.ConfirmedNoteID(id),
		Title:    "note " + id,
		Type:     models.NoteTypeText,
		Position: position,
		Pinned:   pinned,
	}
}

func displayIDs(c *Coordinator) []string {
	notes := c.Notes()
	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ID.Value)
	}
	return ids
}

func TestApplyOptimisticCreate(t *testing.T) {
	t.Run("assigns a provisional id and writes it back", func(t *testing.T) {
		c := seeded()
		m := Mutation{Kind: opqueue.KindCreate, Note: &models.Note{Title: "milk", Type: models.NoteTypeText}}

		undo, err := c.ApplyOptimistic(&m)
		require.NoError(t, err)

		require.NotEmpty(t, m.NoteID)
		assert.True(t, m.Note.ID.Provisional)
		assert.Equal(t, m.Note.ID.Value, m.NoteID)

		got, ok := c.Get(m.NoteID)
		require.True(t, ok)
		assert.Equal(t, "milk", got.Title)

		c.Rollback(undo)
		_, ok = c.Get(m.NoteID)
		assert.False(t, ok)
	})

	t.Run("keeps a preset id", func(t *testing.T) {
		c := seeded()
		m := Mutation{Kind: opqueue.KindCreate, Note: &models.Note{ID: models.ConfirmedNoteID("fixed")}}

		_, err := c.ApplyOptimistic(&m)
		require.NoError(t, err)
		assert.Equal(t, "fixed", m.NoteID)
	})

	t.Run("rejects a create without a note", func(t *testing.T) {
		c := seeded()
		_, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindCreate})
		assert.Error(t, err)
	})
}

func TestApplyOptimisticUpdate(t *testing.T) {
	t.Run("applies fields and rolls back exactly", func(t *testing.T) {
		c := seeded(note("a", 0, false))

		undo, err := c.ApplyOptimistic(&Mutation{
			Kind:   opqueue.KindUpdate,
			NoteID: "a",
			Fields: map[string]any{"title": "renamed", "pinned": true},
		})
		require.NoError(t, err)

		got, _ := c.Get("a")
		assert.Equal(t, "renamed", got.Title)
		assert.True(t, got.Pinned)

		c.Rollback(undo)
		got, _ = c.Get("a")
		assert.Equal(t, "note a", got.Title)
		assert.False(t, got.Pinned)
	})

	t.Run("unknown note fails", func(t *testing.T) {
		c := seeded()
		_, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindUpdate, NoteID: "missing"})
		assert.ErrorIs(t, err, ErrNoteNotFound)
	})
}

func TestApplyOptimisticDelete(t *testing.T) {
	c := seeded(note("a", 0, false))

	undo, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindDelete, NoteID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	c.Rollback(undo)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "note a", got.Title)
}

func TestApplyOptimisticToggleItem(t *testing.T) {
	base := note("list", 0, false)
	base.Type = models.NoteTypeChecklist
	base.Items = []models.ChecklistItem{
		{ID: "i1", Text: "eggs"},
		{ID: "i2", Text: "milk", Completed: true},
	}
	c := seeded(base)

	undo, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindToggleItem, NoteID: "list", ItemID: "i1"})
	require.NoError(t, err)

	got, _ := c.Get("list")
	assert.True(t, got.Items[0].Completed)

	c.Rollback(undo)
	got, _ = c.Get("list")
	assert.False(t, got.Items[0].Completed)

	t.Run("unknown item fails", func(t *testing.T) {
		_, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindToggleItem, NoteID: "list", ItemID: "nope"})
		assert.Error(t, err)
	})
}

func TestApplyOptimisticLabels(t *testing.T) {
	c := seeded(note("a", 0, false))
	groceries := &models.Label{ID: "l1", Name: "groceries"}

	t.Run("add is idempotent", func(t *testing.T) {
		_, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindAddLabel, NoteID: "a", Label: groceries})
		require.NoError(t, err)
		_, err = c.ApplyOptimistic(&Mutation{Kind: opqueue.KindAddLabel, NoteID: "a", Label: groceries})
		require.NoError(t, err)

		got, _ := c.Get("a")
		assert.Len(t, got.Labels, 1)
	})

	t.Run("remove with rollback", func(t *testing.T) {
		undo, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindRemoveLabel, NoteID: "a", Label: groceries})
		require.NoError(t, err)

		got, _ := c.Get("a")
		assert.Empty(t, got.Labels)

		c.Rollback(undo)
		got, _ = c.Get("a")
		assert.Len(t, got.Labels, 1)
	})
}

func TestApplyOptimisticReorder(t *testing.T) {
	c := seeded(note("a", 0, false), note("b", 1, false), note("c", 2, false))

	undo, err := c.ApplyOptimistic(&Mutation{Kind: opqueue.KindReorder, Order: []string{"c", "a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, displayIDs(c))

	c.Rollback(undo)
	assert.Equal(t, []string{"a", "b", "c"}, displayIDs(c))
}

func TestConfirm(t *testing.T) {
	t.Run("remaps a provisional id without duplicates", func(t *testing.T) {
		c := seeded()
		m := Mutation{Kind: opqueue.KindCreate, Note: &models.Note{Title: "milk"}}
		_, err := c.ApplyOptimistic(&m)
		require.NoError(t, err)
		provisional := m.NoteID

		server := models.Note{ID: models.ConfirmedNoteID("srv-9"), Title: "milk"}
		c.Confirm(provisional, server)

		assert.Equal(t, 1, c.Len())
		_, ok := c.Get(provisional)
		assert.False(t, ok)

		got, ok := c.Get("srv-9")
		require.True(t, ok)
		assert.False(t, got.ID.Provisional)
	})

	t.Run("replaces in place when ids match", func(t *testing.T) {
		c := seeded(note("a", 0, false))
		server := note("a", 0, false)
		server.Title = "authoritative"

		c.Confirm("a", server)

		got, _ := c.Get("a")
		assert.Equal(t, "authoritative", got.Title)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("empty server id is ignored", func(t *testing.T) {
		c := seeded(note("a", 0, false))
		c.Confirm("a", models.Note{})
		assert.Equal(t, 1, c.Len())
	})
}

func TestApplyRemote(t *testing.T) {
	t.Run("partial update wins over local fields", func(t *testing.T) {
		c := seeded(note("a", 0, false))

		changed := c.ApplyRemote(models.NoteUpdatedEvent{
			NoteID: "a",
			UserID: "other-user",
			Fields: map[string]any{"title": "remote title", "archived": true},
		})
		require.True(t, changed)

		got, _ := c.Get("a")
		assert.Equal(t, "remote title", got.Title)
		assert.True(t, got.Archived)
	})

	t.Run("update for an unknown note is a no-op", func(t *testing.T) {
		c := seeded()
		assert.False(t, c.ApplyRemote(models.NoteUpdatedEvent{NoteID: "missing"}))
	})

	t.Run("item toggle sets the remote value", func(t *testing.T) {
		base := note("list", 0, false)
		base.Items = []models.ChecklistItem{{ID: "i1", Completed: true}}
		c := seeded(base)

		changed := c.ApplyRemote(models.ItemToggledEvent{NoteID: "list", ItemID: "i1", Completed: false})
		require.True(t, changed)

		got, _ := c.Get("list")
		assert.False(t, got.Items[0].Completed)
	})

	t.Run("presence events carry no state", func(t *testing.T) {
		c := seeded(note("a", 0, false))
		assert.False(t, c.ApplyRemote(models.PresenceEvent{NoteID: "a", UserID: "other", Joined: true}))
	})
}

func TestMergeReorder(t *testing.T) {
	t.Run("pinned notes hold their position", func(t *testing.T) {
		c := seeded(
			note("a", 0, true), // pinned
			note("b", 1, false),
			note("c", 2, false),
			note("d", 3, false),
		)

		changed := c.ApplyRemote(models.NotesReorderedEvent{
			UserID:  owner,
			NoteIDs: []string{"d", "c", "b"},
		})
		require.True(t, changed)
		assert.Equal(t, []string{"a", "d", "c", "b"}, displayIDs(c))
	})

	t.Run("unlisted notes keep relative order at the end", func(t *testing.T) {
		c := seeded(
			note("a", 0, false),
			note("b", 1, false),
			note("c", 2, false),
			note("d", 3, false),
		)

		// The sender's view was filtered to b and a only.
		changed := c.ApplyRemote(models.NotesReorderedEvent{
			UserID:  owner,
			NoteIDs: []string{"b", "a"},
		})
		require.True(t, changed)
		assert.Equal(t, []string{"b", "a", "c", "d"}, displayIDs(c))
	})

	t.Run("unknown ids in the event are skipped", func(t *testing.T) {
		c := seeded(note("a", 0, false), note("b", 1, false))

		changed := c.ApplyRemote(models.NotesReorderedEvent{
			UserID:  owner,
			NoteIDs: []string{"ghost", "b", "a"},
		})
		require.True(t, changed)
		assert.Equal(t, []string{"b", "a"}, displayIDs(c))
	})

	t.Run("another user's reorder is ignored", func(t *testing.T) {
		c := seeded(note("a", 0, false), note("b", 1, false))

		changed := c.ApplyRemote(models.NotesReorderedEvent{
			UserID:  "someone-else",
			NoteIDs: []string{"b", "a"},
		})
		assert.False(t, changed)
		assert.Equal(t, []string{"a", "b"}, displayIDs(c))
	})

	t.Run("events failing shape validation are ignored", func(t *testing.T) {
		c := seeded(note("a", 0, false))
		assert.False(t, c.ApplyRemote(models.NotesReorderedEvent{UserID: "", NoteIDs: []string{"a"}}))
		assert.False(t, c.ApplyRemote(models.NotesReorderedEvent{UserID: owner}))
	})
}

func TestNotesDisplayOrder(t *testing.T) {
	c := seeded(
		note("b", 1, false),
		note("p", 5, true),
		note("a", 0, false),
	)
	assert.Equal(t, []string{"p", "a", "b"}, displayIDs(c))
}

func TestGetReturnsClones(t *testing.T) {
	base := note("list", 0, false)
	base.Items = []models.ChecklistItem{{ID: "i1", Text: "eggs"}}
	c := seeded(base)

	got, _ := c.Get("list")
	got.Items[0].Text = "tampered"
	got.Title = "tampered"

	fresh, _ := c.Get("list")
	assert.Equal(t, "eggs", fresh.Items[0].Text)
	assert.Equal(t, "note list", fresh.Title)
}
