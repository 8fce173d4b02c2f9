// Package trust lists and forgets the peers remembered for the local
// permanent key. Peers are addressed by their fingerprint or a unique prefix
// of it.
package trust
