package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeyBytes is the size of public, secret and shared keys.
	KeyBytes = 32
	// NonceBytes is the size of a NaCl nonce.
	NonceBytes = 24
	// Overhead is the authenticator size added by Seal.
	Overhead = box.Overhead
)

// PublicKey is a Curve25519 public key.
type PublicKey [KeyBytes]byte

// Slice returns the key as a []byte.
func (p PublicKey) Slice() []byte { return p[:] }

// Hex returns the lower-hex encoding of the key.
func (p PublicKey) Hex() string { return hex.EncodeToString(p[:]) }

// Equal compares two public keys in constant time.
func (p PublicKey) Equal(o PublicKey) bool {
	return subtle.ConstantTimeCompare(p[:], o[:]) == 1
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != KeyBytes {
		return pk, invalidLength("public key", KeyBytes, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// PublicKeyFromHex parses a hex encoded public key. Upper case input is accepted.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return PublicKey{}, &Error{Kind: KindInvalidKeyLength, Msg: "public key: invalid hex: " + err.Error()}
	}
	return PublicKeyFromBytes(b)
}

// KeyPair is a Curve25519 key pair.
type KeyPair struct {
	public PublicKey
	secret [KeyBytes]byte
}

// GenerateKeyPair returns a fresh key pair from the system random source.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, &Error{Kind: KindRandom, Msg: err.Error()}
	}
	kp := &KeyPair{public: *pub, secret: *priv}
	Wipe(priv[:])
	return kp, nil
}

// KeyPairFromSecretKey rebuilds a key pair from its secret half. The input is
// not retained.
func KeyPairFromSecretKey(sk []byte) (*KeyPair, error) {
	if len(sk) != KeyBytes {
		return nil, invalidLength("secret key", KeyBytes, len(sk))
	}
	kp := new(KeyPair)
	copy(kp.secret[:], sk)
	curve25519.ScalarBaseMult((*[KeyBytes]byte)(&kp.public), &kp.secret)
	return kp, nil
}

// PublicKey returns the public half.
func (kp *KeyPair) PublicKey() PublicKey { return kp.public }

// PublicKeyHex returns the lower-hex public key, which doubles as the
// signaling path of an initiator.
func (kp *KeyPair) PublicKeyHex() string { return kp.public.Hex() }

// SecretKeyBytes returns a copy of the secret key for persistence. Callers
// must Wipe the returned slice.
func (kp *KeyPair) SecretKeyBytes() []byte {
	out := make([]byte, KeyBytes)
	copy(out, kp.secret[:])
	return out
}

// SharedKey precomputes the box key between kp and peer.
func (kp *KeyPair) SharedKey(peer PublicKey) *SharedKey {
	sk := new(SharedKey)
	pub := [KeyBytes]byte(peer)
	box.Precompute(&sk.key, &pub, &kp.secret)
	return sk
}

// Wipe zeroes the secret key.
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	Wipe(kp.secret[:])
}

// String never includes secret material.
func (kp *KeyPair) String() string {
	return "KeyPair(" + Fingerprint(kp.public) + ")"
}
