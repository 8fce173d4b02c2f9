package nonce

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"saltyrtc/internal/domain"
)

const (
	// Size is the encoded nonce size.
	Size = 24
	// CookieSize is the size of a cookie.
	CookieSize = 16

	maxOverflow = 0xffff
)

// Cookie is the random per-direction value at the head of every nonce.
type Cookie [CookieSize]byte

// NewCookie returns a random cookie.
func NewCookie() (Cookie, error) {
	var c Cookie
	_, err := rand.Read(c[:])
	return c, err
}

// CookieFromBytes copies b into a Cookie.
func CookieFromBytes(b []byte) (Cookie, error) {
	var c Cookie
	if len(b) != CookieSize {
		return c, fmt.Errorf("nonce: cookie must be %d bytes, got %d", CookieSize, len(b))
	}
	copy(c[:], b)
	return c, nil
}

// Equal compares cookies in constant time.
func (c Cookie) Equal(o Cookie) bool { return subtle.ConstantTimeCompare(c[:], o[:]) == 1 }

// String returns the lower-hex cookie.
func (c Cookie) String() string { return hex.EncodeToString(c[:]) }

// Nonce is a decoded signaling nonce.
type Nonce struct {
	Cookie      Cookie
	Source      domain.Address
	Destination domain.Address
	Overflow    uint16
	Sequence    uint32
}

// CombinedSequence returns overflow<<32 | sequence.
func (n Nonce) CombinedSequence() uint64 {
	return uint64(n.Overflow)<<32 | uint64(n.Sequence)
}

// Bytes encodes n.
func (n Nonce) Bytes() [Size]byte {
	var b [Size]byte
	copy(b[:CookieSize], n.Cookie[:])
	b[16] = byte(n.Source)
	b[17] = byte(n.Destination)
	binary.BigEndian.PutUint16(b[18:20], n.Overflow)
	binary.BigEndian.PutUint32(b[20:24], n.Sequence)
	return b
}

// Parse decodes the nonce at the head of b. Trailing bytes are ignored.
func Parse(b []byte) (Nonce, error) {
	var n Nonce
	if len(b) < Size {
		return n, fmt.Errorf("nonce: need %d bytes, got %d", Size, len(b))
	}
	copy(n.Cookie[:], b[:CookieSize])
	n.Source = domain.Address(b[16])
	n.Destination = domain.Address(b[17])
	n.Overflow = binary.BigEndian.Uint16(b[18:20])
	n.Sequence = binary.BigEndian.Uint32(b[20:24])
	return n, nil
}

func (n Nonce) String() string {
	return fmt.Sprintf("%s->%s csn=%d/%d", n.Source, n.Destination, n.Overflow, n.Sequence)
}

// CombinedSequenceNumber is the outgoing sequence counter for one direction.
type CombinedSequenceNumber struct {
	overflow uint16
	sequence uint32
}

// NewCombinedSequenceNumber starts at a random 32-bit sequence number with
// overflow zero.
func NewCombinedSequenceNumber() (CombinedSequenceNumber, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return CombinedSequenceNumber{}, err
	}
	return CombinedSequenceNumber{sequence: binary.BigEndian.Uint32(b[:])}, nil
}

// Next returns the current value and advances the counter. The 32-bit
// sequence rolls into the overflow field; wrapping the overflow is fatal.
func (c *CombinedSequenceNumber) Next() (overflow uint16, sequence uint32, err error) {
	overflow, sequence = c.overflow, c.sequence
	if c.sequence == 0xffffffff {
		if c.overflow == maxOverflow {
			return 0, 0, newError(KindExhausted, "overflow number would wrap")
		}
		c.overflow++
		c.sequence = 0
	} else {
		c.sequence++
	}
	return overflow, sequence, nil
}
