package crypto

import (
	"crypto/subtle"

	"golang.org/x/crypto/nacl/box"
)

// SharedKey is a precomputed NaCl box key between two key pairs.
type SharedKey struct {
	key [KeyBytes]byte
}

// Seal encrypts and authenticates plain under nonce.
func (k *SharedKey) Seal(plain []byte, nonce *[NonceBytes]byte) []byte {
	return box.SealAfterPrecomputation(nil, plain, nonce, &k.key)
}

// Open authenticates and decrypts sealed.
func (k *SharedKey) Open(sealed []byte, nonce *[NonceBytes]byte) ([]byte, error) {
	if k == nil {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "no shared key"}
	}
	if len(sealed) < Overhead {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "ciphertext truncated"}
	}
	out, ok := box.OpenAfterPrecomputation(nil, sealed, nonce, &k.key)
	if !ok {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "box authentication failed"}
	}
	return out, nil
}

// Equal compares two shared keys in constant time.
func (k *SharedKey) Equal(o *SharedKey) bool {
	if k == nil || o == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.key[:], o.key[:]) == 1
}

// Wipe zeroes the key.
func (k *SharedKey) Wipe() {
	if k == nil {
		return
	}
	Wipe(k.key[:])
}

// SealTo is a one-shot box from sender to recipient, used where no shared
// key is cached (signed keys verification).
func SealTo(plain []byte, nonce *[NonceBytes]byte, recipient PublicKey, sender *KeyPair) []byte {
	pub := [KeyBytes]byte(recipient)
	return box.Seal(nil, plain, nonce, &pub, &sender.secret)
}

// OpenFrom opens a one-shot box sent by sender to recipient.
func OpenFrom(sealed []byte, nonce *[NonceBytes]byte, sender PublicKey, recipient *KeyPair) ([]byte, error) {
	pub := [KeyBytes]byte(sender)
	out, ok := box.Open(nil, sealed, nonce, &pub, &recipient.secret)
	if !ok {
		return nil, &Error{Kind: KindDecryptionFailed, Msg: "box authentication failed"}
	}
	return out, nil
}
