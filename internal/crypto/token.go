package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// AuthToken is a one-time symmetric key shared out-of-band from initiator to
// responder.
type AuthToken struct {
	key [KeyBytes]byte
}

// NewAuthToken generates a random token.
func NewAuthToken() (*AuthToken, error) {
	t := new(AuthToken)
	if _, err := rand.Read(t.key[:]); err != nil {
		return nil, &Error{Kind: KindRandom, Msg: err.Error()}
	}
	return t, nil
}

// AuthTokenFromBytes copies b into a token.
func AuthTokenFromBytes(b []byte) (*AuthToken, error) {
	if len(b) != KeyBytes {
		return nil, invalidLength("auth token", KeyBytes, len(b))
	}
	t := new(AuthToken)
	copy(t.key[:], b)
	return t, nil
}

// AuthTokenFromHex parses a hex encoded token.
func AuthTokenFromHex(s string) (*AuthToken, error) {
	b, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return nil, &Error{Kind: KindInvalidKeyLength, Msg: "auth token: invalid hex: " + err.Error()}
	}
	defer Wipe(b)
	return AuthTokenFromBytes(b)
}

// Hex returns the lower-hex token for out-of-band transfer.
func (t *AuthToken) Hex() string { return hex.EncodeToString(t.key[:]) }

// Seal encrypts plain with the token under nonce.
func (t *AuthToken) Seal(plain []byte, nonce *[NonceBytes]byte) []byte {
	return secretbox.Seal(nil, plain, nonce, &t.key)
}

// Open authenticates and decrypts sealed with the token.
func (t *AuthToken) Open(sealed []byte, nonce *[NonceBytes]byte) ([]byte, error) {
	if t == nil {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "no auth token"}
	}
	if len(sealed) < secretbox.Overhead {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "ciphertext truncated"}
	}
	out, ok := secretbox.Open(nil, sealed, nonce, &t.key)
	if !ok {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "secretbox authentication failed"}
	}
	return out, nil
}

// Wipe zeroes the token. A wiped token can no longer open anything useful.
func (t *AuthToken) Wipe() {
	if t == nil {
		return
	}
	Wipe(t.key[:])
}
