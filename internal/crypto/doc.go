// Package crypto exposes the primitives used by the signaling protocol.
//
// Contents
//
//   - Curve25519 key pairs and NaCl box shared keys (GenerateKeyPair,
//     KeyPair.SharedKey, SharedKey.Seal / SharedKey.Open)
//   - One-time auth tokens backed by NaCl secretbox (NewAuthToken,
//     AuthToken.Seal / AuthToken.Open)
//   - Lower-hex encoding of public keys and tokens (PublicKeyFromHex,
//     AuthTokenFromHex)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Keys are fixed-size arrays. Secret keys are never exposed by String or
// logging helpers; callers should Wipe key pairs, shared keys and tokens once
// the connection they belong to is torn down.
package crypto
