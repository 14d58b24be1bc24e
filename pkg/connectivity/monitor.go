// Package connectivity tracks the runtime's network status, debounces
// flapping, and triggers a queue drain once a recovered connection has
// settled.
package connectivity

import (
	"sync"
	"time"

	"github.com/fridgenotes/notesync.go/pkg/logger"
)

// DefaultSettleDelay is how long a recovered connection must stay up before
// the drain trigger fires. Replaying the queue against a connection that
// immediately drops again just burns retry budget.
const DefaultSettleDelay = 2 * time.Second

// Monitor reflects the most recent connectivity signal. It cannot fail:
// with no signal ever received it reports online.
type Monitor struct {
	settle time.Duration
	log    logger.Logger

	mu          sync.Mutex
	online      bool
	onRecovery  func()
	listeners   map[int]func(online bool)
	nextToken   int
	settleTimer *time.Timer
	closed      bool
}

// NewMonitor returns a Monitor reporting online. A settle of 0 uses
// DefaultSettleDelay.
func NewMonitor(settle time.Duration, log logger.Logger) *Monitor {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		settle:    settle,
		log:       log,
		online:    true,
		listeners: make(map[int]func(bool)),
	}
}

// Online returns the current status.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnRecovery registers the drain trigger invoked after a settled recovery.
// The trigger itself is expected to coalesce overlapping invocations (the
// queue's drain is single-flight), so the monitor only guarantees at most
// one invocation per online transition.
func (m *Monitor) OnRecovery(fn func()) {
	m.mu.Lock()
	m.onRecovery = fn
	m.mu.Unlock()
}

// Subscribe registers a transition listener. Exactly one callback fires per
// real transition; duplicate signals for the current state are ignored.
// The returned function removes the listener and is safe to call twice.
func (m *Monitor) Subscribe(fn func(online bool)) (cancel func()) {
	m.mu.Lock()
	token := m.nextToken
	m.nextToken++
	m.listeners[token] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, token)
		m.mu.Unlock()
	}
}

// SetOnline feeds the runtime's connectivity signal.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.closed || m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	// Any pending settle timer belongs to a connection that just dropped.
	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
	}

	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}

	if online {
		m.settleTimer = time.AfterFunc(m.settle, m.settled)
	}
	m.mu.Unlock()

	if online {
		m.log.Info("connectivity: became online")
	} else {
		m.log.Info("connectivity: became offline")
	}
	for _, fn := range listeners {
		fn(online)
	}
}

// settled runs once the recovery has held for the settle delay.
func (m *Monitor) settled() {
	m.mu.Lock()
	if m.closed || !m.online {
		m.mu.Unlock()
		return
	}
	m.settleTimer = nil
	trigger := m.onRecovery
	m.mu.Unlock()

	if trigger != nil {
		m.log.Debug("connectivity: recovery settled, triggering drain")
		trigger()
	}
}

// Close stops any pending settle timer. The monitor reports its last known
// status afterwards but fires no further callbacks.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
	}
	m.mu.Unlock()
}
