// Package commands defines the saltychat CLI.
//
// Commands
//
//   - init         Create the permanent key pair
//   - fingerprint  Print the identity fingerprint
//   - initiator    Open a signaling path and chat with a responder
//   - responder    Join an initiator's path and chat
//   - trusted      List or forget remembered peers
//
// # Implementation
//
// The root command loads the configuration and builds the dependency graph
// (log backend, stores, services) before any subcommand runs. A chat runs
// the WebSocket client in the background and reads lines from stdin.
package commands
