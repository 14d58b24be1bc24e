// Package gorillaws implements channel.Transport over a gorilla/websocket
// connection carrying CBOR-encoded frames.
package gorillaws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	gorilla "github.com/gorilla/websocket"

	"github.com/fridgenotes/notesync.go/pkg/channel"
)

// SessionHeader carries the session identity on the handshake.
const SessionHeader = "X-Session-ID"

const closeWriteTimeout = 5 * time.Second

// DefaultDialer mirrors gorilla's default dialer with compression enabled
// and the cbor subprotocol announced.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// Transport dials WebSocket connections for the channel manager.
type Transport struct {
	// Dialer overrides DefaultDialer when set.
	Dialer *gorilla.Dialer
}

func New() *Transport {
	return &Transport{}
}

func (t *Transport) Dial(ctx context.Context, url, sessionID string) (channel.Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}

	header := http.Header{}
	if sessionID != "" {
		header.Set(SessionHeader, sessionID)
	}

	ws, res, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	return &conn{ws: ws}, nil
}

type conn struct {
	ws *gorilla.Conn
	// writeMu serializes writes; gorilla connections allow one writer.
	writeMu sync.Mutex
}

func (c *conn) Send(ctx context.Context, f channel.Frame) error {
	data, err := cbor.Marshal(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.ws.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(gorilla.BinaryMessage, data)
}

func (c *conn) Receive(ctx context.Context) (channel.Frame, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.ws.SetReadDeadline(deadline); err != nil {
			return channel.Frame{}, err
		}
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return channel.Frame{}, err
	}

	var f channel.Frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return channel.Frame{}, err
	}
	return f, nil
}

// Close sends a close message best-effort, then closes the connection
// either way so local resources are never leaked over a failed handshake.
func (c *conn) Close() error {
	c.writeMu.Lock()
	deadline := time.Now().Add(closeWriteTimeout)
	msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")
	_ = c.ws.WriteControl(gorilla.CloseMessage, msg, deadline)
	c.writeMu.Unlock()

	return c.ws.Close()
}
