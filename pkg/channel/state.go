package channel

import "fmt"

// State is the connection state of the Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(next State) error {
	// Closed is reachable from anywhere but itself.
	if next == StateClosed && s != StateClosed {
		return nil
	}

	switch s {
	case StateDisconnected:
		if next == StateConnecting {
			return nil
		}
	case StateConnecting:
		switch next {
		case StateConnected, StateDisconnected:
			return nil
		}
	case StateConnected:
		// Connected to Connecting happens on an explicit reconnect that
		// tears down the live connection first.
		switch next {
		case StateConnecting, StateReconnecting, StateDisconnected:
			return nil
		}
	case StateReconnecting:
		switch next {
		case StateConnected, StateDisconnected, StateConnecting:
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, next)
}
