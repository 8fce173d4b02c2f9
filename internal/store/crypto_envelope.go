package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// The current supported version of the encrypted blob format stored on disk.
	keystoreFormatVersion = 1
	saltSize              = 16
)

// ErrWrongPassphrase is returned when the passphrase is incorrect or the blob
// was modified.
var ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted identity")

// blob is the on-disk JSON structure holding the sealed secret key and the
// KDF parameters. The public key is kept in the clear and bound as
// associated data.
type blob struct {
	V      int    `json:"v"`
	Public []byte `json:"public"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

func (b *blob) ad() []byte {
	ad := make([]byte, 0, len(b.Salt)+len(b.Public))
	ad = append(ad, b.Salt...)
	return append(ad, b.Public...)
}

func deriveKey(passphrase string, salt []byte, N, r, p int) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
}

// seal derives a key from passphrase and seals secret into a JSON blob.
func seal(passphrase string, public, secret []byte, N, r, p int) ([]byte, error) {
	bl := blob{V: keystoreFormatVersion, Public: public, Salt: make([]byte, saltSize), N: N, R: r, P: p}
	if _, err := rand.Read(bl.Salt); err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, bl.Salt, N, r, p)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	// A fresh salt per seal gives a fresh key, so the zero nonce is never reused.
	var nonce [chacha20poly1305.NonceSize]byte
	bl.Cipher = aead.Seal(nil, nonce[:], secret, bl.ad())
	return json.Marshal(bl)
}

func parseBlob(b []byte) (*blob, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("store: identity blob: %w", err)
	}
	if bl.V < 1 || bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("store: unsupported keystore version %d", bl.V)
	}
	return &bl, nil
}

// open parses the blob and decrypts the secret key with passphrase.
func open(passphrase string, b []byte) (public, secret []byte, err error) {
	bl, err := parseBlob(b)
	if err != nil {
		return nil, nil, err
	}
	key, err := deriveKey(passphrase, bl.Salt, bl.N, bl.R, bl.P)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	secret, err = aead.Open(nil, nonce[:], bl.Cipher, bl.ad())
	if err != nil {
		return nil, nil, ErrWrongPassphrase
	}
	return bl.Public, secret, nil
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }
