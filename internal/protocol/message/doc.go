// Package message defines the signaling messages exchanged with the relay
// server and the peer, and their MessagePack encoding.
//
// Every message is a MessagePack map carrying a "type" field. Decode accepts
// the signaling types defined here plus any type an active task declares;
// task messages are passed on as raw bytes.
package message
