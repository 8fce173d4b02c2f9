package crypto

import "runtime"

// Wipe zeroes every buffer. Secret keys, auth tokens and decrypted identity
// blobs all end up here.
//
//go:noinline
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
	runtime.KeepAlive(bufs)
}
