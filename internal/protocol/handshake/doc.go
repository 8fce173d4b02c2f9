// Package handshake implements the server and peer handshakes.
//
// The state machines never touch the wire. They consume decoded envelopes,
// report which keys may open the next frame from a partner, and return the
// messages to send together with the key each one must be sealed with. The
// signaling orchestrator turns those into frames.
//
// Any invalid message or failed check moves a machine into its absorbing
// failure state and surfaces as a *FailureError.
package handshake
