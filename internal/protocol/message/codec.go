package message

import (
	"errors"
	"fmt"

	"github.com/ugorji/go/codec"
)

var (
	// ErrUnknownType is returned for a type tag that is neither a signaling
	// type nor declared by the active task.
	ErrUnknownType = errors.New("message: unknown type")
	// ErrMalformed is returned for undecodable or invalid payloads.
	ErrMalformed = errors.New("message: malformed payload")
)

var msgpackHandle = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	// Encode []byte as msgpack bin and strings as str.
	h.WriteExt = true
	return h
}

// Encode serialises m, filling in its type tag.
func Encode(m Message) ([]byte, error) {
	if t, ok := m.(*Task); ok {
		return t.Raw, nil
	}
	m.stamp()
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(m); err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", m.MessageType(), err)
	}
	return out, nil
}

// Marshal encodes an arbitrary value with the signaling MessagePack settings.
// Tasks use it for their own messages and configuration data.
func Marshal(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(b []byte, v any) error {
	return codec.NewDecoderBytes(b, msgpackHandle).Decode(v)
}

// PeekType returns the type tag of an encoded message.
func PeekType(b []byte) (string, error) {
	var hdr struct {
		Type string `codec:"type"`
	}
	if err := Unmarshal(b, &hdr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if hdr.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return hdr.Type, nil
}

// Decode parses b. Types accepted by extra are returned as *Task.
func Decode(b []byte, extra func(string) bool) (Message, error) {
	typ, err := PeekType(b)
	if err != nil {
		return nil, err
	}

	var m Message
	switch typ {
	case TypeServerHello:
		m = new(ServerHello)
	case TypeClientHello:
		m = new(ClientHello)
	case TypeClientAuth:
		m = new(ClientAuth)
	case TypeServerAuth:
		m = new(ServerAuth)
	case TypeNewInitiator:
		m = new(NewInitiator)
	case TypeNewResponder:
		m = new(NewResponder)
	case TypeDropResponder:
		m = new(DropResponder)
	case TypeSendError:
		m = new(SendError)
	case TypeDisconnected:
		m = new(Disconnected)
	case TypeToken:
		m = new(Token)
	case TypeKey:
		m = new(Key)
	case TypeAuth:
		m = new(Auth)
	case TypeClose:
		m = new(Close)
	case TypeApplication:
		m = new(Application)
	default:
		if extra != nil && extra(typ) {
			return &Task{Kind: typ, Raw: b}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	if err := Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
	}
	if err := validate(m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
	}
	return m, nil
}
