package types

import "fmt"

// Address identifies a signaling participant on a path.
//
// The server is always 0x00 and the initiator always 0x01. Responders are
// assigned addresses in 0x02..0xff by the server.
type Address uint8

const (
	// ServerAddress is the address of the relay server.
	ServerAddress Address = 0x00
	// InitiatorAddress is the address of the initiator.
	InitiatorAddress Address = 0x01
)

// IsServer reports whether a is the server address.
func (a Address) IsServer() bool { return a == ServerAddress }

// IsInitiator reports whether a is the initiator address.
func (a Address) IsInitiator() bool { return a == InitiatorAddress }

// IsResponder reports whether a lies in the responder range.
func (a Address) IsResponder() bool { return a >= 0x02 }

// String returns a readable form of the address.
func (a Address) String() string {
	switch {
	case a.IsServer():
		return "server"
	case a.IsInitiator():
		return "initiator"
	default:
		return fmt.Sprintf("responder(0x%02x)", uint8(a))
	}
}

// Role is the fixed role a client plays on a path.
type Role uint8

const (
	// Initiator owns the path (its permanent public key).
	Initiator Role = iota + 1
	// Responder joins a path using the initiator's public key.
	Responder
)

// String returns the lower case role name.
func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}
