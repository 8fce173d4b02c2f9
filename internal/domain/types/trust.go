package types

// TrustedPeer is a remote permanent public key remembered after a successful
// token-based first contact.
type TrustedPeer struct {
	// PublicKey is the peer's permanent public key.
	PublicKey [32]byte `cbor:"1,keyasint"`
	// PeerRole is the role the peer played when it was paired.
	PeerRole Role `cbor:"2,keyasint"`
	// PairedUnix is the pairing time in unix seconds.
	PairedUnix int64 `cbor:"3,keyasint"`
	// LastSeenUnix is the time of the most recent successful handshake.
	LastSeenUnix int64 `cbor:"4,keyasint"`
}
