package state

import "fmt"

// SignalingState is the overall protocol phase. It only moves forward.
type SignalingState uint8

const (
	ServerHandshake SignalingState = iota
	PeerHandshake
	Task
)

func (s SignalingState) String() string {
	switch s {
	case ServerHandshake:
		return "ServerHandshake"
	case PeerHandshake:
		return "PeerHandshake"
	case Task:
		return "Task"
	default:
		return fmt.Sprintf("SignalingState(%d)", uint8(s))
	}
}

func (s SignalingState) Successors() []SignalingState {
	switch s {
	case ServerHandshake:
		return []SignalingState{PeerHandshake}
	case PeerHandshake:
		return []SignalingState{Task}
	default:
		return nil
	}
}

// ServerHandshakeState tracks the handshake with the relay server. The
// client-hello message is only sent by responders; both roles move from
// ServerNew to ClientInfoSent once their introduction is out.
type ServerHandshakeState uint8

const (
	ServerNew ServerHandshakeState = iota
	ClientInfoSent
	ServerDone
)

func (s ServerHandshakeState) String() string {
	switch s {
	case ServerNew:
		return "New"
	case ClientInfoSent:
		return "ClientInfoSent"
	case ServerDone:
		return "Done"
	default:
		return fmt.Sprintf("ServerHandshakeState(%d)", uint8(s))
	}
}

func (s ServerHandshakeState) Successors() []ServerHandshakeState {
	switch s {
	case ServerNew:
		return []ServerHandshakeState{ClientInfoSent}
	case ClientInfoSent:
		return []ServerHandshakeState{ServerDone}
	default:
		return nil
	}
}

// InitiatorHandshakeState is the responder's view of its handshake with the
// initiator. The token step is skipped when the initiator already trusts our
// permanent key.
type InitiatorHandshakeState uint8

const (
	InitiatorNew InitiatorHandshakeState = iota
	InitiatorTokenSent
	InitiatorKeySent
	InitiatorKeyReceived
	InitiatorAuthSent
	InitiatorAuthReceived
)

func (s InitiatorHandshakeState) String() string {
	switch s {
	case InitiatorNew:
		return "New"
	case InitiatorTokenSent:
		return "TokenSent"
	case InitiatorKeySent:
		return "KeySent"
	case InitiatorKeyReceived:
		return "KeyReceived"
	case InitiatorAuthSent:
		return "AuthSent"
	case InitiatorAuthReceived:
		return "AuthReceived"
	default:
		return fmt.Sprintf("InitiatorHandshakeState(%d)", uint8(s))
	}
}

func (s InitiatorHandshakeState) Successors() []InitiatorHandshakeState {
	switch s {
	case InitiatorNew:
		return []InitiatorHandshakeState{InitiatorTokenSent, InitiatorKeySent}
	case InitiatorTokenSent:
		return []InitiatorHandshakeState{InitiatorKeySent}
	case InitiatorKeySent:
		return []InitiatorHandshakeState{InitiatorKeyReceived}
	case InitiatorKeyReceived:
		return []InitiatorHandshakeState{InitiatorAuthSent}
	case InitiatorAuthSent:
		return []InitiatorHandshakeState{InitiatorAuthReceived}
	default:
		return nil
	}
}

// ResponderHandshakeState is the initiator's view of its handshake with one
// responder. A trusted responder starts with its key message, skipping the
// token.
type ResponderHandshakeState uint8

const (
	ResponderNew ResponderHandshakeState = iota
	ResponderTokenReceived
	ResponderKeyReceived
	ResponderKeySent
	ResponderAuthReceived
	ResponderAuthSent
)

func (s ResponderHandshakeState) String() string {
	switch s {
	case ResponderNew:
		return "New"
	case ResponderTokenReceived:
		return "TokenReceived"
	case ResponderKeyReceived:
		return "KeyReceived"
	case ResponderKeySent:
		return "KeySent"
	case ResponderAuthReceived:
		return "AuthReceived"
	case ResponderAuthSent:
		return "AuthSent"
	default:
		return fmt.Sprintf("ResponderHandshakeState(%d)", uint8(s))
	}
}

func (s ResponderHandshakeState) Successors() []ResponderHandshakeState {
	switch s {
	case ResponderNew:
		return []ResponderHandshakeState{ResponderTokenReceived, ResponderKeyReceived}
	case ResponderTokenReceived:
		return []ResponderHandshakeState{ResponderKeyReceived}
	case ResponderKeyReceived:
		return []ResponderHandshakeState{ResponderKeySent}
	case ResponderKeySent:
		return []ResponderHandshakeState{ResponderAuthReceived}
	case ResponderAuthReceived:
		return []ResponderHandshakeState{ResponderAuthSent}
	default:
		return nil
	}
}
