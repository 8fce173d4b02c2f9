package identity

import (
	"fmt"
	"unicode"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
	// ErrIdentityExists is returned by Generate when a key pair is already stored.
	ErrIdentityExists = fmt.Errorf("identity already exists")
)

// Service manages the permanent key pair using a backing store.
//
// The permanent public key is the signaling path of an initiator and the
// identity a peer remembers in its trust store.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// Generate creates a new permanent key pair, saves it encrypted with the
// passphrase, and returns it plus its fingerprint. An existing identity is
// never overwritten.
func (s *Service) Generate(passphrase string) (*crypto.KeyPair, string, error) {
	if !isSecurePassphrase(passphrase) {
		return nil, "", ErrWeakPassphrase
	}
	ok, err := s.store.HasIdentity()
	if err != nil {
		return nil, "", err
	}
	if ok {
		return nil, "", ErrIdentityExists
	}

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, "", err
	}
	if err := s.store.SaveIdentity(passphrase, kp); err != nil {
		kp.Wipe()
		return nil, "", err
	}
	pk := kp.PublicKey()
	return kp, crypto.Fingerprint(pk), nil
}

// Load decrypts and returns the permanent key pair.
func (s *Service) Load(passphrase string) (*crypto.KeyPair, error) {
	return s.store.LoadIdentity(passphrase)
}

// PublicKey returns the permanent public key without decrypting the secret.
func (s *Service) PublicKey() (crypto.PublicKey, error) {
	return s.store.PublicKey()
}

// Fingerprint returns a short fingerprint of the permanent public key.
func (s *Service) Fingerprint() (string, error) {
	pk, err := s.store.PublicKey()
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pk), nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
