package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("writes structured key value pairs", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&buf)

		log.Info("queue drained", "remaining", 0, "took_ms", 12)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "queue drained", line["message"])
		assert.Equal(t, float64(0), line["remaining"])
		assert.Equal(t, float64(12), line["took_ms"])
		assert.Equal(t, "info", line["level"])
	})

	t.Run("non-string keys are stringified", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&buf)

		log.Warn("odd key", 42, "value")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "value", line["42"])
	})

	t.Run("dangling key is dropped", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&buf)

		log.Error("dangling", "orphan")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.NotContains(t, line, "orphan")
	})
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Debug("nothing")
	log.Info("nothing")
	log.Warn("nothing")
	log.Error("nothing")
}
