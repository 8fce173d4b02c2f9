package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintSize is the number of SHA-256 bytes kept in a fingerprint.
const FingerprintSize = 10

// Fingerprint identifies a permanent key in logs and in the CLI. A path is
// the full key; the fingerprint is what users compare and what
// `trusted forget` matches prefixes against.
func Fingerprint(pub PublicKey) string {
	sum := sha256.Sum256(pub[:])
	return hex.EncodeToString(sum[:FingerprintSize])
}
