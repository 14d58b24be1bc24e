package channel

import (
	"context"

	"github.com/fxamacker/cbor/v2"
)

// Frame is the unit of exchange on the realtime channel: a named event with
// an opaque encoded payload. The ID correlates acknowledgements when the
// server sends any; it is not required for dispatch.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event"`
	Payload cbor.RawMessage `json:"payload,omitempty"`
}

// Transport establishes duplex connections to the realtime endpoint. The
// Manager owns all reconnection behavior; a Transport only dials.
type Transport interface {
	Dial(ctx context.Context, url, sessionID string) (Conn, error)
}

// Conn is one live duplex connection.
type Conn interface {
	Send(ctx context.Context, f Frame) error
	// Receive blocks until the next frame arrives or the connection dies.
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

// EncodePayload serializes an event payload for a Frame.
func EncodePayload(v any) (cbor.RawMessage, error) {
	return cbor.Marshal(v)
}

// DecodePayload deserializes a received payload into T.
func DecodePayload[T any](payload []byte) (T, error) {
	var v T
	err := cbor.Unmarshal(payload, &v)
	return v, err
}
