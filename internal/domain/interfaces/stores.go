package interfaces

import (
	"saltyrtc/internal/crypto"
	domaintypes "saltyrtc/internal/domain/types"
)

// IdentityStore persists the permanent key pair.
type IdentityStore interface {
	SaveIdentity(passphrase string, kp *crypto.KeyPair) error
	LoadIdentity(passphrase string) (*crypto.KeyPair, error)
	HasIdentity() (bool, error)
	// PublicKey reads the public half without the passphrase.
	PublicKey() (crypto.PublicKey, error)
}

// TrustStore remembers the permanent keys of peers we paired with through an
// auth token, keyed by our own permanent public key.
type TrustStore interface {
	Trust(local crypto.PublicKey, peer domaintypes.TrustedPeer) error
	Lookup(local, peer crypto.PublicKey) (domaintypes.TrustedPeer, bool, error)
	Latest(local crypto.PublicKey, role domaintypes.Role) (domaintypes.TrustedPeer, bool, error)
	List(local crypto.PublicKey) ([]domaintypes.TrustedPeer, error)
	Forget(local, peer crypto.PublicKey) error
}
