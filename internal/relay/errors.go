package relay

import (
	"errors"
	"fmt"

	"saltyrtc/internal/domain"
)

var (
	// ErrQueueFull is returned by Send when the outgoing queue is full.
	ErrQueueFull = errors.New("relay: outgoing queue full")
	// ErrStopped is returned by Send once Run returned.
	ErrStopped = errors.New("relay: client stopped")
	// ErrPongTimeout means the server did not answer a ping in time.
	ErrPongTimeout = errors.New("relay: pong timeout")
	// ErrSubprotocol means the server did not select v1.saltyrtc.org.
	ErrSubprotocol = errors.New("relay: server did not accept the signaling subprotocol")
)

// ClosedError reports a close frame sent by the server.
type ClosedError struct {
	Code domain.CloseCode
	Text string
}

func (e *ClosedError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("relay: server closed the connection: %s", e.Code)
	}
	return fmt.Sprintf("relay: server closed the connection: %s: %s", e.Code, e.Text)
}
