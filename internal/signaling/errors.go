package signaling

import (
	"errors"
	"fmt"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/handshake"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/state"
)

// StateErrorKind categorizes misuse of the signaling API.
type StateErrorKind uint8

const (
	// KindNotReady means the operation needs the task phase.
	KindNotReady StateErrorKind = iota + 1
	// KindClosed means the session already ended.
	KindClosed
)

// StateError is returned for operations invalid in the current state.
type StateError struct {
	Kind  StateErrorKind
	State state.SignalingState
}

func (e *StateError) Error() string {
	switch e.Kind {
	case KindClosed:
		return "signaling: session closed"
	default:
		return fmt.Sprintf("signaling: not ready in state %s", e.State)
	}
}

// Is matches any *StateError of the same kind.
func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotReady = &StateError{Kind: KindNotReady}
	ErrClosed   = &StateError{Kind: KindClosed}
)

// unexpected reports a message that is valid on the wire but not allowed in
// the current state.
func unexpected(peer domain.Address, msg message.Message, st state.SignalingState) error {
	return &handshake.FailureError{
		Peer:   peer,
		Code:   domain.CloseProtocolError,
		Reason: fmt.Sprintf("unexpected %s message in state %s", msg.MessageType(), st),
	}
}

// CloseCodeFor maps a fatal error to the WebSocket close code the transport
// should use.
func CloseCodeFor(err error) domain.CloseCode {
	var fe *handshake.FailureError
	switch {
	case err == nil:
		return domain.CloseNormal
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, crypto.ErrDecryptionFailed),
		errors.As(err, new(*envelope.Error)),
		errors.As(err, new(*nonce.Error)):
		return domain.CloseProtocolError
	default:
		return domain.CloseInternalError
	}
}
