package handshake

import (
	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/task"
)

// openers drops nil keys so that no typed nil ends up in an interface.
func openers(keys ...envelope.Opener) []envelope.Opener {
	out := make([]envelope.Opener, 0, len(keys))
	for _, k := range keys {
		switch k := k.(type) {
		case *crypto.SharedKey:
			if k != nil {
				out = append(out, k)
			}
		case *crypto.AuthToken:
			if k != nil {
				out = append(out, k)
			}
		case nil:
		default:
			out = append(out, k)
		}
	}
	return out
}

// openedWith reports whether env was authenticated by key.
func openedWith(env *envelope.Envelope, key envelope.Opener) bool {
	return key != nil && env.OpenedWith == key
}

// taskData builds the auth data map for tasks.
func taskData(tasks []task.Task) map[string][]byte {
	data := make(map[string][]byte, len(tasks))
	for _, t := range tasks {
		data[t.Name()] = t.Data()
	}
	return data
}

// echoCookie returns the cookie peer uses towards us, to be repeated in auth.
func echoCookie(tracker *nonce.Tracker, peer domain.Address) ([]byte, bool) {
	c, ok := tracker.TheirCookie(peer)
	if !ok {
		return nil, false
	}
	return c[:], true
}
