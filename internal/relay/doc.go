// Package relay connects a signaling session to a SaltyRTC server over a
// WebSocket.
//
// A Client owns the connection and the session. Client.Run is the only
// goroutine that touches the signaling state: the WebSocket reader and the
// task feed it through channels, and keep-alive pings are sent from the same
// loop. Every frame is one binary WebSocket message and the connection
// negotiates the v1.saltyrtc.org subprotocol.
//
// Once the peer handshake completes the chosen task is started with the
// Client as its task.Sender. Send never blocks: when the outgoing queue is
// full the message is rejected with ErrQueueFull.
package relay
