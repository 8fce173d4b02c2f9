package handshake_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/handshake"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/task"
)

type stubTask struct {
	name     string
	data     []byte
	peerData []byte
	initErr  error
}

func (s *stubTask) Name() string                   { return s.name }
func (s *stubTask) SupportedTypes() []string       { return []string{"stub"} }
func (s *stubTask) Data() []byte                   { return s.data }
func (s *stubTask) Start(task.Sender)              {}
func (s *stubTask) OnMessage(string, []byte) error { return nil }
func (s *stubTask) Close(domain.CloseCode)         {}

func (s *stubTask) Init(peer []byte) error {
	s.peerData = peer
	return s.initErr
}

// handler is the part of a peer handshake the pipe drives.
type handler interface {
	Openers() []envelope.Opener
	Handle(env *envelope.Envelope) ([]handshake.Outgoing, error)
}

// endpoint is one side of an in-memory peer connection.
type endpoint struct {
	addr    domain.Address
	tracker *nonce.Tracker
	codec   *envelope.Codec
}

func newEndpoint(t *testing.T, addr, peer domain.Address) *endpoint {
	t.Helper()
	tr := nonce.NewTracker()
	require.NoError(t, tr.Register(peer))
	return &endpoint{addr: addr, tracker: tr, codec: envelope.NewCodec(tr)}
}

func (e *endpoint) seal(t *testing.T, o handshake.Outgoing) []byte {
	t.Helper()
	n, err := e.tracker.NextOutgoing(e.addr, o.Destination)
	require.NoError(t, err)
	var frame []byte
	if o.Key == nil {
		frame, err = e.codec.EncodePlain(n, o.Message)
	} else {
		frame, err = e.codec.Encode(n, o.Message, o.Key)
	}
	require.NoError(t, err)
	return frame
}

// deliver sends outs from one endpoint to the other, one frame at a time,
// and returns everything the receiver answered.
func deliver(t *testing.T, from, to *endpoint, h handler, outs []handshake.Outgoing) ([]handshake.Outgoing, error) {
	t.Helper()
	var replies []handshake.Outgoing
	for _, o := range outs {
		env, err := to.codec.Decode(from.seal(t, o), h.Openers()...)
		if err != nil {
			return replies, err
		}
		more, err := h.Handle(env)
		replies = append(replies, more...)
		if err != nil {
			return replies, err
		}
	}
	return replies, nil
}
