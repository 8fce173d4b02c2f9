package interfaces

import (
	"saltyrtc/internal/crypto"
	domaintypes "saltyrtc/internal/domain/types"
)

// IdentityService creates and unlocks the permanent key pair.
type IdentityService interface {
	Generate(passphrase string) (*crypto.KeyPair, string, error)
	Load(passphrase string) (*crypto.KeyPair, error)
	PublicKey() (crypto.PublicKey, error)
	Fingerprint() (string, error)
}

// TrustService manages the peers remembered for our permanent key.
type TrustService interface {
	List() ([]domaintypes.TrustedPeer, error)
	Latest(role domaintypes.Role) (domaintypes.TrustedPeer, bool, error)
	Forget(fingerprint string) (domaintypes.TrustedPeer, error)
}
