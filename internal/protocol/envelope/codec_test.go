package envelope_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
)

const (
	src = domain.InitiatorAddress
	dst = domain.Address(0x02)
)

type side struct {
	tracker *nonce.Tracker
	codec   *envelope.Codec
	key     *crypto.SharedKey
}

func newSides(t *testing.T) (sender, receiver side) {
	t.Helper()
	a, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	b, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	sender.tracker = nonce.NewTracker()
	require.NoError(t, sender.tracker.Register(dst))
	sender.codec = envelope.NewCodec(sender.tracker)
	sender.key = a.SharedKey(b.PublicKey())

	receiver.tracker = nonce.NewTracker()
	require.NoError(t, receiver.tracker.Register(src))
	receiver.codec = envelope.NewCodec(receiver.tracker)
	receiver.key = b.SharedKey(a.PublicKey())
	return sender, receiver
}

func (s side) frame(t *testing.T, m message.Message) []byte {
	t.Helper()
	n, err := s.tracker.NextOutgoing(src, dst)
	require.NoError(t, err)
	f, err := s.codec.Encode(n, m, s.key)
	require.NoError(t, err)
	return f
}

type countingOpener struct{ calls int }

func (o *countingOpener) Open([]byte, *[crypto.NonceBytes]byte) ([]byte, error) {
	o.calls++
	return nil, errors.New("unused")
}

func TestRoundTrip(t *testing.T) {
	sender, receiver := newSides(t)

	for _, payload := range [][]byte{{}, []byte("x"), make([]byte, 4096)} {
		f := sender.frame(t, &message.Application{Data: payload})
		env, err := receiver.codec.Decode(f, receiver.key)
		require.NoError(t, err)
		app, ok := env.Message.(*message.Application)
		require.True(t, ok)
		assert.Equal(t, len(payload), len(app.Data))
		assert.Equal(t, message.TypeApplication, env.Type())
		assert.Equal(t, src, env.Nonce.Source)
		assert.Equal(t, envelope.Opener(receiver.key), env.OpenedWith)
	}
}

func TestTruncatedNeverDecrypts(t *testing.T) {
	_, receiver := newSides(t)
	o := new(countingOpener)

	_, err := receiver.codec.Decode(make([]byte, nonce.Size-1), o)
	require.Error(t, err)
	assert.True(t, errors.Is(err, envelope.ErrTruncated))
	assert.Zero(t, o.calls)

	_, err = receiver.codec.DecodePlain(make([]byte, 3))
	assert.True(t, errors.Is(err, envelope.ErrTruncated))
}

func TestTamperedFrame(t *testing.T) {
	sender, receiver := newSides(t)
	f := sender.frame(t, &message.Close{Reason: int(domain.CloseNormal)})
	f[len(f)-1] ^= 0x80

	_, err := receiver.codec.Decode(f, receiver.key)
	assert.True(t, errors.Is(err, crypto.ErrDecryptionFailed))
}

func TestFallbackKeyOrder(t *testing.T) {
	sender, receiver := newSides(t)
	other, _ := crypto.GenerateKeyPair()
	wrong := other.SharedKey(other.PublicKey())

	f := sender.frame(t, &message.Close{Reason: int(domain.CloseNormal)})
	env, err := receiver.codec.Decode(f, wrong, receiver.key)
	require.NoError(t, err)
	assert.Equal(t, envelope.Opener(receiver.key), env.OpenedWith)
}

func TestReplayedFrame(t *testing.T) {
	sender, receiver := newSides(t)
	f := sender.frame(t, &message.Close{Reason: int(domain.CloseNormal)})

	_, err := receiver.codec.Decode(f, receiver.key)
	require.NoError(t, err)
	_, err = receiver.codec.Decode(f, receiver.key)
	assert.True(t, errors.Is(err, nonce.ErrSequenceNotIncreasing))
}

func TestTaskTypesGated(t *testing.T) {
	sender, receiver := newSides(t)
	raw, err := message.Marshal(map[string]any{"type": "msg", "data": "hi"})
	require.NoError(t, err)

	f := sender.frame(t, &message.Task{Kind: "msg", Raw: raw})
	_, err = receiver.codec.Decode(f, receiver.key)
	assert.True(t, errors.Is(err, envelope.ErrUnknownType))

	receiver.codec.AcceptTaskTypes([]string{"msg"})
	f = sender.frame(t, &message.Task{Kind: "msg", Raw: raw})
	env, err := receiver.codec.Decode(f, receiver.key)
	require.NoError(t, err)
	assert.Equal(t, "msg", env.Type())
	assert.Equal(t, raw, env.Payload)
}

func TestPlainMode(t *testing.T) {
	sender, receiver := newSides(t)
	n, err := sender.tracker.NextOutgoing(src, dst)
	require.NoError(t, err)

	key := make([]byte, 32)
	f, err := sender.codec.EncodePlain(n, &message.ClientHello{Key: key})
	require.NoError(t, err)

	env, err := receiver.codec.DecodePlain(f)
	require.NoError(t, err)
	assert.Nil(t, env.OpenedWith)
	assert.Equal(t, message.TypeClientHello, env.Type())
}

func TestMalformedPayload(t *testing.T) {
	sender, receiver := newSides(t)
	f := sender.frame(t, &message.Key{Key: []byte{1}})
	_, err := receiver.codec.Decode(f, receiver.key)
	assert.True(t, errors.Is(err, envelope.ErrMalformedPayload))
	assert.True(t, errors.Is(err, message.ErrMalformed))
}
