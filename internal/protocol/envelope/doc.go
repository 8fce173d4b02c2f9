// Package envelope turns signaling messages into binary frames and back.
//
// A frame is a 24-byte nonce followed by either the NaCl box of the
// MessagePack payload or, for the bootstrap messages only, the plaintext
// payload. Plaintext framing is selected explicitly through EncodePlain and
// DecodePlain; it is never inferred from the frame content.
package envelope
