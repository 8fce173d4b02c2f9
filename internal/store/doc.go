// Package store provides persistence for the client's long-lived data.
//
// The permanent key pair lives in a passphrase-encrypted JSON blob
// (IdentityFileStore). Peers paired through an auth token are remembered in a
// bbolt database of CBOR records (TrustDB), so later connections identify
// them by their permanent key.
package store
