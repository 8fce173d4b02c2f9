// Package nonce implements signaling nonces and the per-peer bookkeeping that
// defends against replay, reflection and forgery.
//
// A nonce is 24 bytes: cookie(16) ‖ source(1) ‖ destination(1) ‖
// overflow(2) ‖ sequence(4), integers big endian. The overflow and sequence
// numbers together form a 48-bit combined sequence number that must strictly
// increase per direction.
package nonce
