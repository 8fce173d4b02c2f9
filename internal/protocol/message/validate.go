package message

import (
	"errors"
	"fmt"
)

const (
	keyLen     = 32
	cookieLen  = 16
	sendErrLen = 8
)

func checkLen(field string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%s must be %d bytes, got %d", field, want, len(b))
	}
	return nil
}

func checkResponderID(id int) error {
	if id < 0x02 || id > 0xff {
		return fmt.Errorf("id %d is not a responder address", id)
	}
	return nil
}

func validate(m Message) error {
	switch m := m.(type) {
	case *ServerHello:
		return checkLen("key", m.Key, keyLen)
	case *ClientHello:
		return checkLen("key", m.Key, keyLen)
	case *ClientAuth:
		if err := checkLen("your_cookie", m.YourCookie, cookieLen); err != nil {
			return err
		}
		if len(m.YourKey) != 0 {
			return checkLen("your_key", m.YourKey, keyLen)
		}
	case *ServerAuth:
		if err := checkLen("your_cookie", m.YourCookie, cookieLen); err != nil {
			return err
		}
		for _, id := range m.Responders {
			if err := checkResponderID(id); err != nil {
				return err
			}
		}
	case *NewResponder:
		return checkResponderID(m.ID)
	case *DropResponder:
		return checkResponderID(m.ID)
	case *SendError:
		return checkLen("id", m.ID, sendErrLen)
	case *Disconnected:
		if m.ID < 0x01 || m.ID > 0xff {
			return fmt.Errorf("id %d is not a peer address", m.ID)
		}
	case *Token:
		return checkLen("key", m.Key, keyLen)
	case *Key:
		return checkLen("key", m.Key, keyLen)
	case *Auth:
		if err := checkLen("your_cookie", m.YourCookie, cookieLen); err != nil {
			return err
		}
		if (len(m.Tasks) == 0) == (m.Task == "") {
			return errors.New("exactly one of tasks or task must be set")
		}
	case *Close:
		if m.Reason < 1000 || m.Reason > 0xffff {
			return fmt.Errorf("reason %d out of range", m.Reason)
		}
	}
	return nil
}
