package channel

import (
	"github.com/fridgenotes/notesync.go/pkg/models"
)

// OnEvent registers a listener that decodes payloads into the typed event T
// before delivery. Payloads that fail to decode are dropped; a malformed
// broadcast must never crash the engine.
func OnEvent[T models.Event](m *Manager, handler func(T)) (cancel func()) {
	var zero T
	name := zero.EventName()
	return m.On(name, func(event string, payload []byte) {
		v, err := DecodePayload[T](payload)
		if err != nil {
			m.log.Warn("channel: dropping malformed event payload", "event", event, "error", err)
			return
		}
		handler(v)
	})
}
