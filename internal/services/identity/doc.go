// Package identity manages creation, encryption and loading of the permanent
// key pair.
//
// It enforces the passphrase policy, generates the Curve25519 key pair that
// identifies us on every signaling path, and persists it via the
// domain.IdentityStore.
package identity
