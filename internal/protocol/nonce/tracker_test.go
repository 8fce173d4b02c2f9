package nonce_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/nonce"
)

const (
	alice = domain.InitiatorAddress
	bob   = domain.Address(0x02)
)

// pair returns a sender tracker (alice, talking to bob) and a receiver
// tracker (bob, expecting alice).
func pair(t *testing.T) (*nonce.Tracker, *nonce.Tracker) {
	t.Helper()
	sender := nonce.NewTracker()
	require.NoError(t, sender.Register(bob))
	receiver := nonce.NewTracker()
	require.NoError(t, receiver.Register(alice))
	return sender, receiver
}

func TestParseRoundTrip(t *testing.T) {
	n := nonce.Nonce{
		Cookie:      nonce.Cookie{1, 2, 3},
		Source:      0x01,
		Destination: 0x05,
		Overflow:    0x0102,
		Sequence:    0x03040506,
	}
	b := n.Bytes()
	assert.Equal(t, byte(0x01), b[16])
	assert.Equal(t, byte(0x05), b[17])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, b[18:])

	got, err := nonce.Parse(b[:])
	require.NoError(t, err)
	assert.Equal(t, n, got)

	_, err = nonce.Parse(b[:23])
	assert.Error(t, err)
}

func TestNextOutgoingStrictlyIncreasing(t *testing.T) {
	sender, _ := pair(t)

	var last uint64
	for i := 0; i < 100; i++ {
		n, err := sender.NextOutgoing(alice, bob)
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, n.CombinedSequence(), last)
		}
		last = n.CombinedSequence()

		ours, _ := sender.OurCookie(bob)
		require.Equal(t, ours, n.Cookie)
	}
}

func TestReplayRejected(t *testing.T) {
	sender, receiver := pair(t)

	first, err := sender.NextOutgoing(alice, bob)
	require.NoError(t, err)
	second, err := sender.NextOutgoing(alice, bob)
	require.NoError(t, err)

	require.NoError(t, receiver.ValidateIncoming(first))
	require.NoError(t, receiver.ValidateIncoming(second))

	err = receiver.ValidateIncoming(second)
	assert.True(t, errors.Is(err, nonce.ErrSequenceNotIncreasing))
	err = receiver.ValidateIncoming(first)
	assert.True(t, errors.Is(err, nonce.ErrSequenceNotIncreasing))
}

func TestFirstMessageOverflowMustBeZero(t *testing.T) {
	_, receiver := pair(t)
	n := nonce.Nonce{Cookie: nonce.Cookie{9}, Source: alice, Destination: bob, Overflow: 1}
	err := receiver.ValidateIncoming(n)
	assert.True(t, errors.Is(err, nonce.ErrSequenceNotIncreasing))
}

func TestCookieMismatch(t *testing.T) {
	sender, receiver := pair(t)
	n, _ := sender.NextOutgoing(alice, bob)
	require.NoError(t, receiver.ValidateIncoming(n))

	n2, _ := sender.NextOutgoing(alice, bob)
	n2.Cookie[0] ^= 0xff
	err := receiver.ValidateIncoming(n2)
	assert.True(t, errors.Is(err, nonce.ErrCookieMismatch))
}

func TestUnknownSource(t *testing.T) {
	receiver := nonce.NewTracker()
	err := receiver.ValidateIncoming(nonce.Nonce{Source: 0x07})
	assert.True(t, errors.Is(err, nonce.ErrUnknownSource))

	_, err = receiver.NextOutgoing(alice, 0x07)
	assert.True(t, errors.Is(err, nonce.ErrUnknownSource))
}

func TestCookieEchoConfirmedOnce(t *testing.T) {
	_, receiver := pair(t)
	ours, ok := receiver.OurCookie(alice)
	require.True(t, ok)

	require.NoError(t, receiver.ConfirmCookie(alice, ours))
	err := receiver.ConfirmCookie(alice, ours)
	assert.True(t, errors.Is(err, nonce.ErrCookieMismatch))
}

func TestCookieEchoForeignRejected(t *testing.T) {
	_, receiver := pair(t)
	err := receiver.ConfirmCookie(alice, nonce.Cookie{0xaa})
	assert.True(t, errors.Is(err, nonce.ErrCookieMismatch))
}

func TestCookieOnWrongDirectionIsReflection(t *testing.T) {
	_, receiver := pair(t)
	ours, _ := receiver.OurCookie(alice)

	// Alice "sends" using the cookie receiver generated for her.
	n := nonce.Nonce{Cookie: ours, Source: alice, Destination: bob}
	err := receiver.ValidateIncoming(n)
	assert.True(t, errors.Is(err, nonce.ErrReflection))
}

func TestRegisterResetsState(t *testing.T) {
	sender, receiver := pair(t)
	n, _ := sender.NextOutgoing(alice, bob)
	require.NoError(t, receiver.ValidateIncoming(n))
	before, _ := receiver.OurCookie(alice)

	require.NoError(t, receiver.Register(alice))
	after, _ := receiver.OurCookie(alice)
	assert.NotEqual(t, before, after)
	_, ok := receiver.TheirCookie(alice)
	assert.False(t, ok)

	receiver.Forget(alice)
	assert.False(t, receiver.Known(alice))
}
