package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
)

const idFilename = "identity.json.enc"

// IdentityFileStore persists the permanent key pair, encrypted with a
// passphrase.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex

	// scrypt parameters, lowered by tests.
	n, r, p int
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	n, r, p := scryptParamsDefault()
	return &IdentityFileStore{dir: dir, n: n, r: r, p: p}
}

func (s *IdentityFileStore) path() string { return filepath.Join(s.dir, idFilename) }

// SaveIdentity writes the encrypted key pair to disk, replacing any
// previous identity.
func (s *IdentityFileStore) SaveIdentity(passphrase string, kp *crypto.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	secret := kp.SecretKeyBytes()
	defer crypto.Wipe(secret)

	pk := kp.PublicKey()
	b, err := seal(passphrase, pk.Slice(), secret, s.n, s.r, s.p)
	if err != nil {
		return err
	}
	return writeFile(s.path(), b, 0o600)
}

// LoadIdentity reads and decrypts the key pair.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (*crypto.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path())
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNoIdentity
	}
	public, secret, err := open(passphrase, b)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(secret)

	kp, err := crypto.KeyPairFromSecretKey(secret)
	if err != nil {
		return nil, err
	}
	if want, err := crypto.PublicKeyFromBytes(public); err != nil || !want.Equal(kp.PublicKey()) {
		kp.Wipe()
		return nil, fmt.Errorf("store: identity public key does not match its secret key")
	}
	return kp, nil
}

// HasIdentity reports whether an identity file exists.
func (s *IdentityFileStore) HasIdentity() (bool, error) {
	_, err := os.Stat(s.path())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// PublicKey returns the stored public key without decrypting anything.
func (s *IdentityFileStore) PublicKey() (crypto.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path())
	if err != nil {
		return crypto.PublicKey{}, err
	}
	if b == nil {
		return crypto.PublicKey{}, ErrNoIdentity
	}
	bl, err := parseBlob(b)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	return crypto.PublicKeyFromBytes(bl.Public)
}

// ErrNoIdentity is returned when no identity was created yet.
var ErrNoIdentity = errors.New("store: no identity, run init first")

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
