package envelope

import "fmt"

// ErrorKind categorizes frame codec failures. All of them are fatal.
type ErrorKind uint8

const (
	KindTruncated ErrorKind = iota + 1
	KindUnknownType
	KindMalformedPayload
	KindAddressMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated frame"
	case KindUnknownType:
		return "unknown type"
	case KindMalformedPayload:
		return "malformed payload"
	case KindAddressMismatch:
		return "address mismatch"
	default:
		return fmt.Sprintf("codec error kind %d", uint8(k))
	}
}

// Error is a frame codec failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := "envelope: " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrTruncated        = &Error{Kind: KindTruncated}
	ErrUnknownType      = &Error{Kind: KindUnknownType}
	ErrMalformedPayload = &Error{Kind: KindMalformedPayload}
	ErrAddressMismatch  = &Error{Kind: KindAddressMismatch}
)

// AddressMismatch builds a KindAddressMismatch error.
func AddressMismatch(format string, args ...any) error {
	return &Error{Kind: KindAddressMismatch, Msg: fmt.Sprintf(format, args...)}
}
