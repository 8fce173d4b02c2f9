// Package signaling drives a complete signaling session: the server
// handshake, the peer handshake and, once a task was chosen, the task
// phase.
//
// A Signaling value is owned by a single goroutine. It never performs I/O;
// HandleIncoming consumes one frame and returns the frames to send, and the
// transport feeds it in order.
package signaling
