package handshake

import (
	"fmt"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/state"
)

// Outgoing is a message produced by a handshake. Key is nil for plaintext
// messages.
type Outgoing struct {
	Destination domain.Address
	Message     message.Message
	Key         envelope.Sealer
}

// FailureError is returned when a handshake enters its failure state. It is
// always fatal to the connection.
type FailureError struct {
	Peer   domain.Address
	Code   domain.CloseCode
	Reason string
	Err    error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("handshake with %s failed: %s", e.Peer, e.Reason)
}

func (e *FailureError) Unwrap() error { return e.Err }

// fail moves m into failure and returns the matching error.
func fail[S state.Step[S]](m *state.Machine[S], peer domain.Address, code domain.CloseCode, err error, format string, args ...any) *FailureError {
	reason := fmt.Sprintf(format, args...)
	if err != nil {
		reason += ": " + err.Error()
	}
	m.Fail(reason)
	return &FailureError{Peer: peer, Code: code, Reason: reason, Err: err}
}

// failed returns the error for a machine that already failed.
func failed[S state.Step[S]](m *state.Machine[S], peer domain.Address) error {
	if reason, ok := m.Failed(); ok {
		return &FailureError{Peer: peer, Code: domain.CloseProtocolError, Reason: reason}
	}
	return nil
}

func unexpected[S state.Step[S]](m *state.Machine[S], peer domain.Address, msg message.Message) *FailureError {
	return fail(m, peer, domain.CloseProtocolError, nil, "unexpected %s message in state %s", msg.MessageType(), m.Current())
}
