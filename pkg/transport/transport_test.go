package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgenotes/notesync.go/pkg/opqueue"
)

// recordingClient remembers which method Dispatch routed to.
type recordingClient struct {
	called string
}

func (c *recordingClient) record(name string) (json.RawMessage, error) {
	c.called = name
	return nil, nil
}

func (c *recordingClient) CreateNote(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("CreateNote")
}

func (c *recordingClient) UpdateNote(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("UpdateNote")
}

func (c *recordingClient) DeleteNote(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("DeleteNote")
}

func (c *recordingClient) ToggleItem(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("ToggleItem")
}

func (c *recordingClient) AddLabel(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("AddLabel")
}

func (c *recordingClient) RemoveLabel(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("RemoveLabel")
}

func (c *recordingClient) Reorder(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("Reorder")
}

func (c *recordingClient) Custom(ctx context.Context, op opqueue.Operation) (json.RawMessage, error) {
	return c.record("Custom")
}

func TestDispatch(t *testing.T) {
	routes := map[opqueue.Kind]string{
		opqueue.KindCreate:      "CreateNote",
		opqueue.KindUpdate:      "UpdateNote",
		opqueue.KindDelete:      "DeleteNote",
		opqueue.KindToggleItem:  "ToggleItem",
		opqueue.KindAddLabel:    "AddLabel",
		opqueue.KindRemoveLabel: "RemoveLabel",
		opqueue.KindReorder:     "Reorder",
		opqueue.KindCustom:      "Custom",
	}

	for kind, method := range routes {
		t.Run(string(kind), func(t *testing.T) {
			c := &recordingClient{}
			_, err := Dispatch(context.Background(), c, opqueue.Operation{Kind: kind})
			require.NoError(t, err)
			assert.Equal(t, method, c.called)
		})
	}

	t.Run("unknown kind is rejected", func(t *testing.T) {
		c := &recordingClient{}
		_, err := Dispatch(context.Background(), c, opqueue.Operation{Kind: "bogus"})
		require.Error(t, err)
		assert.False(t, Retryable(err))
		assert.Empty(t, c.called)
	})
}

func TestRetryable(t *testing.T) {
	t.Run("network failures retry", func(t *testing.T) {
		assert.True(t, Retryable(NewNetwork(errors.New("connection reset"))))
	})

	t.Run("timeouts retry", func(t *testing.T) {
		assert.True(t, Retryable(NewTimeout(context.DeadlineExceeded)))
	})

	t.Run("rejections never retry", func(t *testing.T) {
		assert.False(t, Retryable(NewRejected(422, "title too long")))
	})

	t.Run("wrapped rejections are still terminal", func(t *testing.T) {
		err := NewRejected(409, "conflict")
		assert.False(t, Retryable(errors.Join(errors.New("while syncing"), err)))
	})

	t.Run("unknown errors default to retryable", func(t *testing.T) {
		assert.True(t, Retryable(errors.New("who knows")))
	})
}

func TestRequestError(t *testing.T) {
	t.Run("message formatting", func(t *testing.T) {
		err := NewRejected(400, "bad request")
		assert.Contains(t, err.Error(), "rejected")
		assert.Contains(t, err.Error(), "bad request")
		assert.Equal(t, 400, err.Status)
	})

	t.Run("unwraps the cause", func(t *testing.T) {
		cause := errors.New("dial tcp: refused")
		err := NewNetwork(cause)
		assert.ErrorIs(t, err, cause)
	})
}
