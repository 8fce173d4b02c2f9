package envelope

import (
	"errors"
	"fmt"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
)

// Sealer encrypts a payload under a nonce. *crypto.SharedKey and
// *crypto.AuthToken implement it.
type Sealer interface {
	Seal(plain []byte, n *[crypto.NonceBytes]byte) []byte
}

// Opener decrypts a payload under a nonce.
type Opener interface {
	Open(sealed []byte, n *[crypto.NonceBytes]byte) ([]byte, error)
}

// Envelope is a decoded frame.
type Envelope struct {
	Nonce   nonce.Nonce
	Message message.Message
	// Payload is the decrypted MessagePack payload.
	Payload []byte
	// OpenedWith is the key that authenticated the frame, nil for plaintext.
	OpenedWith Opener
}

// Type returns the message type tag.
func (e *Envelope) Type() string { return e.Message.MessageType() }

// Codec encodes and decodes frames, validating every incoming nonce against
// its tracker.
type Codec struct {
	tracker   *nonce.Tracker
	taskTypes map[string]bool
}

// NewCodec returns a codec validating against tracker.
func NewCodec(tracker *nonce.Tracker) *Codec {
	return &Codec{tracker: tracker}
}

// AcceptTaskTypes makes Decode accept the given task message types. It is
// called once the task is selected.
func (c *Codec) AcceptTaskTypes(types []string) {
	c.taskTypes = make(map[string]bool, len(types))
	for _, t := range types {
		c.taskTypes[t] = true
	}
}

func (c *Codec) isTaskType(t string) bool { return c.taskTypes[t] }

// PeekNonce parses the nonce at the head of frame without touching the rest.
func PeekNonce(frame []byte) (nonce.Nonce, error) {
	if len(frame) < nonce.Size {
		return nonce.Nonce{}, &Error{Kind: KindTruncated, Msg: fmt.Sprintf("%d bytes, need at least %d", len(frame), nonce.Size)}
	}
	return nonce.Parse(frame)
}

// Encode seals msg under n with key.
func (c *Codec) Encode(n nonce.Nonce, msg message.Message, key Sealer) ([]byte, error) {
	if key == nil {
		return nil, errors.New("envelope: encrypted encode without key")
	}
	payload, err := message.Encode(msg)
	if err != nil {
		return nil, err
	}
	nb := n.Bytes()
	sealed := key.Seal(payload, &nb)
	frame := make([]byte, 0, nonce.Size+len(sealed))
	frame = append(frame, nb[:]...)
	return append(frame, sealed...), nil
}

// EncodePlain frames msg without encryption.
func (c *Codec) EncodePlain(n nonce.Nonce, msg message.Message) ([]byte, error) {
	payload, err := message.Encode(msg)
	if err != nil {
		return nil, err
	}
	nb := n.Bytes()
	frame := make([]byte, 0, nonce.Size+len(payload))
	frame = append(frame, nb[:]...)
	return append(frame, payload...), nil
}

// Decode parses, decrypts and validates an encrypted frame. The keys are
// tried in order; the first one that authenticates the frame wins.
func (c *Codec) Decode(frame []byte, keys ...Opener) (*Envelope, error) {
	n, err := PeekNonce(frame)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("envelope: encrypted decode without key")
	}

	nb := n.Bytes()
	var (
		payload []byte
		opened  Opener
	)
	for _, k := range keys {
		if k == nil {
			continue
		}
		if payload, err = k.Open(frame[nonce.Size:], &nb); err == nil {
			opened = k
			break
		}
	}
	if opened == nil {
		if err == nil {
			err = &crypto.Error{Kind: crypto.KindDecryptionFailed, Msg: "no usable key"}
		}
		return nil, err
	}
	return c.finish(n, payload, opened)
}

// DecodePlain parses and validates a plaintext frame.
func (c *Codec) DecodePlain(frame []byte) (*Envelope, error) {
	n, err := PeekNonce(frame)
	if err != nil {
		return nil, err
	}
	return c.finish(n, frame[nonce.Size:], nil)
}

func (c *Codec) finish(n nonce.Nonce, payload []byte, opened Opener) (*Envelope, error) {
	if err := c.tracker.ValidateIncoming(n); err != nil {
		return nil, err
	}
	msg, err := message.Decode(payload, c.isTaskType)
	switch {
	case errors.Is(err, message.ErrUnknownType):
		return nil, &Error{Kind: KindUnknownType, Err: err}
	case err != nil:
		return nil, &Error{Kind: KindMalformedPayload, Err: err}
	}
	return &Envelope{Nonce: n, Message: msg, Payload: payload, OpenedWith: opened}, nil
}
