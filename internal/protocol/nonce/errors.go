package nonce

import "fmt"

// ErrorKind categorizes nonce validation failures. All of them are fatal.
type ErrorKind uint8

const (
	KindSequenceNotIncreasing ErrorKind = iota + 1
	KindCookieMismatch
	KindReflection
	KindExhausted
	KindUnknownSource
)

func (k ErrorKind) String() string {
	switch k {
	case KindSequenceNotIncreasing:
		return "sequence not increasing"
	case KindCookieMismatch:
		return "cookie mismatch"
	case KindReflection:
		return "cookie reflection"
	case KindExhausted:
		return "sequence exhausted"
	case KindUnknownSource:
		return "unknown source"
	default:
		return fmt.Sprintf("nonce error kind %d", uint8(k))
	}
}

// Error is a nonce validation failure.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "nonce: " + e.Kind.String()
	}
	return "nonce: " + e.Kind.String() + ": " + e.Msg
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrSequenceNotIncreasing = &Error{Kind: KindSequenceNotIncreasing}
	ErrCookieMismatch        = &Error{Kind: KindCookieMismatch}
	ErrReflection            = &Error{Kind: KindReflection}
	ErrExhausted             = &Error{Kind: KindExhausted}
	ErrUnknownSource         = &Error{Kind: KindUnknownSource}
)

func newError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
