// Package state holds the signaling and handshake state types.
//
// Every handshake is a Machine over a step enumeration plus an absorbing
// failure state. Steps only move along their declared successors; any other
// transition puts the machine into failure, where it stays.
package state
