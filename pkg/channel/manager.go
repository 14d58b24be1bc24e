// Package channel manages the persistent realtime connection: per-note room
// subscriptions, automatic reconnection with backoff, resubscription replay
// after reconnect, and typed event dispatch.
//
// Room membership is tracked client-side as the source of truth. The
// transport connection is ephemeral and is rebuilt from the membership set
// on every successful connect.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fridgenotes/notesync.go/internal/rand"
	"github.com/fridgenotes/notesync.go/pkg/backoff"
	"github.com/fridgenotes/notesync.go/pkg/logger"
	"github.com/fridgenotes/notesync.go/pkg/models"
)

// ErrClosed is returned by operations on a Manager after Close.
var ErrClosed = errors.New("channel: manager closed")

const frameIDLength = 16

// DefaultReconnectAttempts bounds automatic reconnection. After exhausting
// them the manager reports Unavailable until a manual Connect.
const DefaultReconnectAttempts = 8

// Handler receives the raw payload of a dispatched event.
type Handler func(event string, payload []byte)

// Options configures a Manager.
type Options struct {
	// URL of the realtime endpoint.
	URL string

	// Transport dials connections. Required.
	Transport Transport

	// Reconnect delays automatic reconnection attempts. Defaults to
	// exponential backoff capped at DefaultReconnectAttempts attempts.
	Reconnect backoff.Policy

	Logger logger.Logger
}

type roomMessage struct {
	NoteID string `json:"note_id"`
	UserID string `json:"user_id"`
}

// Manager owns one logical realtime channel.
type Manager struct {
	url    string
	tr     Transport
	policy backoff.Policy
	log    logger.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	gen         int // connection generation, to ignore events from superseded read loops
	sessionID   string
	rooms       map[string]struct{}
	unavailable bool

	handlersMu sync.RWMutex
	handlers   map[string]map[int]Handler
	nextToken  int
}

// NewManager returns a disconnected Manager. Listeners may be registered
// and rooms joined before the first Connect.
func NewManager(opts Options) (*Manager, error) {
	if opts.Transport == nil {
		return nil, errors.New("channel: transport is required")
	}
	policy := opts.Reconnect
	if policy == nil {
		p := backoff.NewExponential()
		p.MaxRetries = DefaultReconnectAttempts
		policy = p
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		url:      opts.URL,
		tr:       opts.Transport,
		policy:   policy,
		log:      log,
		state:    StateDisconnected,
		rooms:    make(map[string]struct{}),
		handlers: make(map[string]map[int]Handler),
	}, nil
}

// Connect establishes the channel for the given session. It is idempotent:
// a live connection is torn down first, and the full room membership set is
// replayed on the new connection before Connect returns.
func (m *Manager) Connect(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.conn != nil {
		m.gen++
		if err := m.conn.Close(); err != nil {
			m.log.Warn("channel: failed to close prior connection", "error", err)
		}
		m.conn = nil
	}
	if err := m.transitionLocked(StateConnecting); err != nil {
		m.mu.Unlock()
		return err
	}
	m.sessionID = sessionID
	m.unavailable = false
	m.mu.Unlock()

	if err := m.establish(ctx, sessionID); err != nil {
		m.mu.Lock()
		if stateErr := m.transitionLocked(StateDisconnected); stateErr != nil {
			m.log.Error("BUG: channel: failed to transition to disconnected", "error", stateErr)
		}
		m.mu.Unlock()
		return fmt.Errorf("channel: connect: %w", err)
	}
	return nil
}

// establish dials, replays room membership, and starts the read loop.
// The caller must have transitioned to Connecting or Reconnecting.
func (m *Manager) establish(ctx context.Context, sessionID string) error {
	conn, err := m.tr.Dial(ctx, m.url, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	if err := m.transitionLocked(StateConnected); err != nil {
		m.log.Error("BUG: channel: failed to transition to connected", "error", err)
	}
	rooms := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		rooms = append(rooms, id)
	}
	m.mu.Unlock()

	// Re-establish every previously-held subscription before anything new
	// happens on this connection.
	sort.Strings(rooms)
	for _, id := range rooms {
		if err := m.send(conn, models.EmitJoinNote, roomMessage{NoteID: id, UserID: sessionID}); err != nil {
			m.log.Error("channel: failed to rejoin room", "note_id", id, "error", err)
		}
	}

	go m.readLoop(conn, gen)
	return nil
}

// Join records membership in the note's room. The join message is sent only
// while connected; the membership itself is recorded unconditionally and
// replayed on the next successful connect.
func (m *Manager) Join(noteID string) {
	m.mu.Lock()
	m.rooms[noteID] = struct{}{}
	conn, connected := m.conn, m.state == StateConnected
	sessionID := m.sessionID
	m.mu.Unlock()

	if connected {
		if err := m.send(conn, models.EmitJoinNote, roomMessage{NoteID: noteID, UserID: sessionID}); err != nil {
			m.log.Error("channel: failed to join room", "note_id", noteID, "error", err)
		}
	}
}

// Leave removes the room from the membership set, sending the leave message
// only while connected.
func (m *Manager) Leave(noteID string) {
	m.mu.Lock()
	delete(m.rooms, noteID)
	conn, connected := m.conn, m.state == StateConnected
	sessionID := m.sessionID
	m.mu.Unlock()

	if connected {
		if err := m.send(conn, models.EmitLeaveNote, roomMessage{NoteID: noteID, UserID: sessionID}); err != nil {
			m.log.Error("channel: failed to leave room", "note_id", noteID, "error", err)
		}
	}
}

// Rooms returns the current membership set.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}

// On registers a listener for the named event. Registration does not depend
// on connection state. The returned function removes the listener and is
// safe to call more than once.
func (m *Manager) On(event string, h Handler) (cancel func()) {
	m.handlersMu.Lock()
	token := m.nextToken
	m.nextToken++
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[int]Handler)
	}
	m.handlers[event][token] = h
	m.handlersMu.Unlock()

	return func() {
		m.handlersMu.Lock()
		delete(m.handlers[event], token)
		m.handlersMu.Unlock()
	}
}

// Emit sends a local event best-effort. It is silently dropped when the
// channel is down: these are supplementary live notifications, not the
// durable mutation path.
func (m *Manager) Emit(event string, payload any) error {
	m.mu.Lock()
	conn, connected := m.conn, m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		m.log.Debug("channel: emit skipped, not connected", "event", event)
		return nil
	}
	return m.send(conn, event, payload)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Unavailable reports whether automatic reconnection gave up. Membership is
// retained; a manual Connect clears the flag and restores all rooms.
func (m *Manager) Unavailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unavailable
}

// Close shuts the channel down for good and suppresses auto-reconnect.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	if err := m.transitionLocked(StateClosed); err != nil {
		m.log.Error("BUG: channel: failed to transition to closed", "error", err)
	}
	conn := m.conn
	m.conn = nil
	m.gen++
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (m *Manager) transitionLocked(next State) error {
	if err := m.state.validateTransitionTo(next); err != nil {
		return err
	}
	m.state = next
	m.log.Debug("channel: state transitioned", "new_state", next)
	return nil
}

func (m *Manager) send(conn Conn, event string, payload any) error {
	encoded, err := EncodePayload(payload)
	if err != nil {
		return fmt.Errorf("channel: encode %s payload: %w", event, err)
	}
	f := Frame{
		ID:      rand.NewFrameID(frameIDLength),
		Event:   event,
		Payload: encoded,
	}
	if err := conn.Send(context.Background(), f); err != nil {
		return fmt.Errorf("channel: send %s: %w", event, err)
	}
	return nil
}

func (m *Manager) readLoop(conn Conn, gen int) {
	for {
		f, err := conn.Receive(context.Background())
		if err != nil {
			m.handleReadError(gen, err)
			return
		}
		m.dispatch(f.Event, f.Payload)
	}
}

func (m *Manager) dispatch(event string, payload []byte) {
	m.handlersMu.RLock()
	handlers := make([]Handler, 0, len(m.handlers[event]))
	for _, h := range m.handlers[event] {
		handlers = append(handlers, h)
	}
	m.handlersMu.RUnlock()

	for _, h := range handlers {
		h(event, payload)
	}
}

// handleReadError decides whether a broken read means reconnect. Explicit
// Close and superseded connections (a newer generation took over) are not
// reconnect triggers.
func (m *Manager) handleReadError(gen int, err error) {
	m.mu.Lock()
	if m.state == StateClosed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	if stateErr := m.transitionLocked(StateReconnecting); stateErr != nil {
		m.log.Error("BUG: channel: failed to transition to reconnecting", "error", stateErr)
		m.mu.Unlock()
		return
	}
	sessionID := m.sessionID
	m.mu.Unlock()

	m.log.Warn("channel: connection lost, reconnecting", "error", err)
	go m.reconnectLoop(sessionID)
}

func (m *Manager) reconnectLoop(sessionID string) {
	for attempt := 0; ; attempt++ {
		delay, ok := m.policy.NextDelay(attempt, nil)
		if !ok {
			m.mu.Lock()
			if m.state == StateReconnecting {
				if err := m.transitionLocked(StateDisconnected); err != nil {
					m.log.Error("BUG: channel: failed to transition to disconnected", "error", err)
				}
				m.unavailable = true
			}
			m.mu.Unlock()
			m.log.Error("channel: reconnect attempts exhausted, channel unavailable")
			return
		}

		time.Sleep(delay)

		m.mu.Lock()
		if m.state != StateReconnecting {
			// Closed, or a manual Connect got there first.
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if err := m.establish(context.Background(), sessionID); err != nil {
			m.log.Warn("channel: reconnect attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		m.policy.Reset()
		m.log.Info("channel: reconnected", "attempts", attempt+1)
		return
	}
}
