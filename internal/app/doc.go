// Package app wires application dependencies for the CLI.
//
// It loads the configuration, opens the log backend and the stores, and
// builds the identity, trust and session services, exposing them via the
// Wire struct for commands to use.
package app
