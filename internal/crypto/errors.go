package crypto

import "fmt"

// ErrorKind categorizes crypto failures.
type ErrorKind uint8

const (
	// KindInvalidKeyLength is returned for keys of the wrong size.
	KindInvalidKeyLength ErrorKind = iota + 1
	// KindDecryptionFailed is returned when a box or secretbox does not
	// authenticate. It always indicates corruption or an active attack.
	KindDecryptionFailed
	// KindRandom is returned when the system random source fails.
	KindRandom
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidKeyLength:
		return "invalid key length"
	case KindDecryptionFailed:
		return "decryption failed"
	case KindRandom:
		return "random source failure"
	default:
		return fmt.Sprintf("crypto error kind %d", uint8(k))
	}
}

// Error is a crypto failure.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "crypto: " + e.Kind.String()
	}
	return "crypto: " + e.Kind.String() + ": " + e.Msg
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	// ErrInvalidKeyLength matches every KindInvalidKeyLength error.
	ErrInvalidKeyLength = &Error{Kind: KindInvalidKeyLength}
	// ErrDecryptionFailed matches every KindDecryptionFailed error.
	ErrDecryptionFailed = &Error{Kind: KindDecryptionFailed}
)

func invalidLength(what string, want, got int) error {
	return &Error{Kind: KindInvalidKeyLength, Msg: fmt.Sprintf("%s: want %d bytes, got %d", what, want, got)}
}
