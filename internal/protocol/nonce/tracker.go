package nonce

import (
	"fmt"

	"saltyrtc/internal/domain"
)

type peer struct {
	ours      Cookie
	theirs    Cookie
	hasTheirs bool
	confirmed bool

	outgoing CombinedSequenceNumber

	lastSeen uint64
	seen     bool
}

// Tracker keeps per-partner cookies and sequence numbers.
//
// A Tracker is owned by a single signaling instance and is not safe for
// concurrent use.
type Tracker struct {
	peers map[domain.Address]*peer
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{peers: make(map[domain.Address]*peer)}
}

// Register starts fresh bookkeeping for addr with a new cookie and a random
// sequence number, replacing any previous state for that address.
func (t *Tracker) Register(addr domain.Address) error {
	p := new(peer)
	for {
		c, err := NewCookie()
		if err != nil {
			return fmt.Errorf("nonce: generating cookie: %w", err)
		}
		if !t.isOurCookie(c) {
			p.ours = c
			break
		}
	}
	csn, err := NewCombinedSequenceNumber()
	if err != nil {
		return fmt.Errorf("nonce: generating sequence number: %w", err)
	}
	p.outgoing = csn
	t.peers[addr] = p
	return nil
}

// Forget drops all state for addr.
func (t *Tracker) Forget(addr domain.Address) {
	delete(t.peers, addr)
}

// Known reports whether addr is registered.
func (t *Tracker) Known(addr domain.Address) bool {
	_, ok := t.peers[addr]
	return ok
}

// OurCookie returns the cookie we use towards addr.
func (t *Tracker) OurCookie(addr domain.Address) (Cookie, bool) {
	p, ok := t.peers[addr]
	if !ok {
		return Cookie{}, false
	}
	return p.ours, true
}

// TheirCookie returns the cookie addr uses towards us, once learned.
func (t *Tracker) TheirCookie(addr domain.Address) (Cookie, bool) {
	p, ok := t.peers[addr]
	if !ok || !p.hasTheirs {
		return Cookie{}, false
	}
	return p.theirs, true
}

// NextOutgoing returns the next nonce from source to destination.
func (t *Tracker) NextOutgoing(source, destination domain.Address) (Nonce, error) {
	p, ok := t.peers[destination]
	if !ok {
		return Nonce{}, newError(KindUnknownSource, "no state for destination %s", destination)
	}
	overflow, sequence, err := p.outgoing.Next()
	if err != nil {
		return Nonce{}, err
	}
	return Nonce{
		Cookie:      p.ours,
		Source:      source,
		Destination: destination,
		Overflow:    overflow,
		Sequence:    sequence,
	}, nil
}

// ValidateIncoming checks the cookie and combined sequence number of an
// incoming nonce and records them on success.
func (t *Tracker) ValidateIncoming(n Nonce) error {
	p, ok := t.peers[n.Source]
	if !ok {
		return newError(KindUnknownSource, "message from unregistered %s", n.Source)
	}

	if t.isOurCookie(n.Cookie) {
		return newError(KindReflection, "%s used a cookie we generated", n.Source)
	}
	if p.hasTheirs && !p.theirs.Equal(n.Cookie) {
		return newError(KindCookieMismatch, "%s changed its cookie", n.Source)
	}

	csn := n.CombinedSequence()
	if !p.seen {
		if n.Overflow != 0 {
			return newError(KindSequenceNotIncreasing, "first message from %s has overflow %d", n.Source, n.Overflow)
		}
	} else if csn <= p.lastSeen {
		return newError(KindSequenceNotIncreasing, "%s sent csn %d after %d", n.Source, csn, p.lastSeen)
	}

	if !p.hasTheirs {
		p.theirs = n.Cookie
		p.hasTheirs = true
	}
	p.lastSeen = csn
	p.seen = true
	return nil
}

// ConfirmCookie checks that echoed, taken from an authenticated payload,
// repeats the cookie we use towards addr. Each partner may confirm once.
func (t *Tracker) ConfirmCookie(addr domain.Address, echoed Cookie) error {
	p, ok := t.peers[addr]
	if !ok {
		return newError(KindUnknownSource, "no state for %s", addr)
	}
	if p.confirmed {
		return newError(KindCookieMismatch, "%s already confirmed our cookie", addr)
	}
	if !p.ours.Equal(echoed) {
		return newError(KindCookieMismatch, "%s echoed a foreign cookie", addr)
	}
	p.confirmed = true
	return nil
}

func (t *Tracker) isOurCookie(c Cookie) bool {
	for _, p := range t.peers {
		if p.ours.Equal(c) {
			return true
		}
	}
	return false
}
