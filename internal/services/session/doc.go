// Package session prepares a signaling session for one run of the client.
//
// It unlocks the permanent key pair, decides between first contact with an
// auth token and key based identification of a trusted peer, and builds the
// signaling state machine together with the WebSocket client that drives it.
package session
