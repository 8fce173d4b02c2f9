package signaling_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
	"saltyrtc/internal/signaling"
	"saltyrtc/internal/store"
)

type session struct {
	relay          *fakeRelay
	initPerm       *crypto.KeyPair
	respPerm       *crypto.KeyPair
	initDB, respDB *store.TrustDB
}

func newSession(t *testing.T) *session {
	t.Helper()
	initPerm, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	respPerm, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return &session{
		relay:    newFakeRelay(t),
		initPerm: initPerm,
		respPerm: respPerm,
		initDB:   openTrust(t),
		respDB:   openTrust(t),
	}
}

func (s *session) initiator(t *testing.T, token *crypto.AuthToken, trusted *crypto.PublicKey, names ...string) *client {
	t.Helper()
	tk := &stubTask{name: pick(names), data: []byte{0x01}}
	sig, err := signaling.New(signaling.Config{
		Role:                domain.Initiator,
		Permanent:           s.initPerm,
		AuthToken:           token,
		TrustedResponderKey: trusted,
		ServerKey:           s.relay.serverKey(),
		Tasks:               []task.Task{tk},
		PingInterval:        30,
		Logger:              testLogger(t),
		TrustStore:          s.initDB,
	})
	require.NoError(t, err)
	return &client{sig: sig, perm: s.initPerm, task: tk}
}

func (s *session) responder(t *testing.T, perm *crypto.KeyPair, token *crypto.AuthToken, names ...string) *client {
	t.Helper()
	tk := &stubTask{name: pick(names), data: []byte{0x02}}
	ipk := s.initPerm.PublicKey()
	sig, err := signaling.New(signaling.Config{
		Role:         domain.Responder,
		Permanent:    perm,
		AuthToken:    token,
		InitiatorKey: &ipk,
		ServerKey:    s.relay.serverKey(),
		Tasks:        []task.Task{tk},
		Logger:       testLogger(t),
		TrustStore:   s.respDB,
	})
	require.NoError(t, err)
	return &client{sig: sig, perm: perm, task: tk}
}

func pick(names []string) string {
	if len(names) == 0 {
		return "v1.stub"
	}
	return names[0]
}

func tokens(t *testing.T) (*crypto.AuthToken, *crypto.AuthToken) {
	t.Helper()
	a, err := crypto.NewAuthToken()
	require.NoError(t, err)
	b, err := crypto.AuthTokenFromHex(a.Hex())
	require.NoError(t, err)
	return a, b
}

// pair runs a token based first contact to the task phase.
func (s *session) pair(t *testing.T) (*client, *client) {
	t.Helper()
	it, rt := tokens(t)
	init := s.initiator(t, it, nil)
	resp := s.responder(t, s.respPerm, rt)

	s.relay.connect(init)
	s.relay.run()
	require.NoError(t, init.err)
	require.Equal(t, []state.SignalingState{state.PeerHandshake}, init.transitions)

	s.relay.connect(resp)
	s.relay.run()
	require.NoError(t, init.err)
	require.NoError(t, resp.err)
	require.Equal(t, state.Task, init.sig.State())
	require.Equal(t, state.Task, resp.sig.State())
	return init, resp
}

func TestTokenPairing(t *testing.T) {
	s := newSession(t)
	init, resp := s.pair(t)

	assert.Equal(t, []state.SignalingState{state.PeerHandshake, state.Task}, resp.transitions)
	assert.Equal(t, resp.addr, init.sig.Peer())
	assert.Equal(t, domain.InitiatorAddress, resp.sig.Peer())
	assert.Equal(t, s.initPerm.PublicKeyHex(), init.sig.Path())
	assert.Equal(t, init.sig.Path(), resp.sig.Path())

	_, failed := init.sig.Failed()
	assert.False(t, failed)
	require.NotNil(t, init.sig.Task())
	assert.Equal(t, "v1.stub", init.sig.Task().Name())
	assert.Equal(t, []byte{0x02}, init.task.peerData)
	assert.Equal(t, []byte{0x01}, resp.task.peerData)

	peer, ok, err := s.initDB.Lookup(s.initPerm.PublicKey(), s.respPerm.PublicKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Responder, peer.PeerRole)

	peer, ok, err = s.respDB.Lookup(s.respPerm.PublicKey(), s.initPerm.PublicKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Initiator, peer.PeerRole)
}

func TestResponderBeforeInitiator(t *testing.T) {
	s := newSession(t)
	it, rt := tokens(t)
	init := s.initiator(t, it, nil)
	resp := s.responder(t, s.respPerm, rt)

	s.relay.connect(resp)
	s.relay.run()
	require.NoError(t, resp.err)
	require.Equal(t, state.PeerHandshake, resp.sig.State())

	s.relay.connect(init)
	s.relay.run()
	require.NoError(t, init.err)
	require.NoError(t, resp.err)
	assert.Equal(t, state.Task, init.sig.State())
	assert.Equal(t, state.Task, resp.sig.State())
}

func TestTrustedReconnect(t *testing.T) {
	s := newSession(t)
	s.pair(t)

	latest, ok, err := s.initDB.Latest(s.initPerm.PublicKey(), domain.Responder)
	require.NoError(t, err)
	require.True(t, ok)
	trusted := crypto.PublicKey(latest.PublicKey)

	s.relay = newFakeRelay(t)
	init := s.initiator(t, nil, &trusted)
	resp := s.responder(t, s.respPerm, nil)

	s.relay.connect(init)
	s.relay.connect(resp)
	s.relay.run()
	require.NoError(t, init.err)
	require.NoError(t, resp.err)
	assert.Equal(t, state.Task, init.sig.State())
	assert.Equal(t, state.Task, resp.sig.State())
}

func TestTaskMessages(t *testing.T) {
	s := newSession(t)
	init, resp := s.pair(t)

	payload, err := message.Marshal(map[string]any{"type": "stub", "n": 1})
	require.NoError(t, err)
	frame, err := resp.sig.HandleOutgoingTaskMessage(payload)
	require.NoError(t, err)
	s.relay.route(resp, frame)

	frame, err = resp.sig.HandleOutgoingApplication([]byte("hello"))
	require.NoError(t, err)
	s.relay.route(resp, frame)
	s.relay.run()
	require.NoError(t, init.err)
	assert.Equal(t, []string{"stub", message.TypeApplication}, init.task.received)

	other, err := message.Marshal(map[string]any{"type": "other"})
	require.NoError(t, err)
	_, err = resp.sig.HandleOutgoingTaskMessage(other)
	assert.Error(t, err)
}

func TestNotReadyBeforeTask(t *testing.T) {
	s := newSession(t)
	it, _ := tokens(t)
	init := s.initiator(t, it, nil)

	payload, err := message.Marshal(map[string]any{"type": "stub"})
	require.NoError(t, err)
	_, err = init.sig.HandleOutgoingTaskMessage(payload)
	require.True(t, errors.Is(err, signaling.ErrNotReady))

	s.relay.connect(init)
	s.relay.run()
	_, err = init.sig.HandleOutgoingApplication([]byte("x"))
	require.True(t, errors.Is(err, signaling.ErrNotReady))

	frame, err := init.sig.Close(domain.CloseNormal)
	require.NoError(t, err)
	assert.Nil(t, frame)
	_, err = init.sig.HandleOutgoingApplication([]byte("x"))
	assert.True(t, errors.Is(err, signaling.ErrClosed))
}

func TestClose(t *testing.T) {
	s := newSession(t)
	init, resp := s.pair(t)

	frame, err := init.sig.Close(domain.CloseNormal)
	require.NoError(t, err)
	require.NotNil(t, frame)
	s.relay.route(init, frame)
	s.relay.run()

	require.NotNil(t, resp.closed)
	assert.Equal(t, domain.CloseNormal, *resp.closed)
	require.NotNil(t, resp.task.closed)
	assert.Equal(t, domain.CloseNormal, *resp.task.closed)
	require.NotNil(t, init.task.closed)

	_, err = init.sig.HandleOutgoingApplication([]byte("late"))
	assert.True(t, errors.Is(err, signaling.ErrClosed))
	_, err = resp.sig.HandleIncoming(frame)
	assert.True(t, errors.Is(err, signaling.ErrClosed))
}

func TestPeerDisconnected(t *testing.T) {
	s := newSession(t)
	init, resp := s.pair(t)

	s.relay.disconnect(resp.addr)
	s.relay.run()
	require.NoError(t, init.err)
	require.NotNil(t, init.closed)
	assert.Equal(t, domain.CloseGoingAway, *init.closed)
	require.NotNil(t, init.task.closed)
	assert.Equal(t, domain.CloseGoingAway, *init.task.closed)
}

func TestLateResponderDropped(t *testing.T) {
	s := newSession(t)
	init, _ := s.pair(t)

	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, rt := tokens(t)
	late := s.responder(t, other, rt)
	s.relay.connect(late)
	s.relay.run()

	require.NoError(t, init.err)
	require.NotNil(t, late.dropped)
	assert.Equal(t, domain.CloseDroppedByInitiator, *late.dropped)
	assert.Equal(t, state.Task, init.sig.State())
}

func TestWrongToken(t *testing.T) {
	s := newSession(t)
	it, _ := tokens(t)
	_, wrong := tokens(t)
	init := s.initiator(t, it, nil)
	resp := s.responder(t, s.respPerm, wrong)

	s.relay.connect(init)
	s.relay.connect(resp)
	s.relay.run()

	require.Error(t, init.err)
	reason, failed := init.sig.Failed()
	assert.True(t, failed)
	assert.Contains(t, reason, init.err.Error())
	assert.True(t, errors.Is(init.err, crypto.ErrDecryptionFailed))
	assert.Equal(t, domain.CloseInitiatorCouldNotDecrypt, signaling.CloseCodeFor(init.err))
	require.NotNil(t, resp.dropped)
	assert.Equal(t, domain.CloseInitiatorCouldNotDecrypt, *resp.dropped)
}

func TestNoSharedTask(t *testing.T) {
	s := newSession(t)
	it, rt := tokens(t)
	init := s.initiator(t, it, nil, "v1.a")
	resp := s.responder(t, s.respPerm, rt, "v1.b")

	s.relay.connect(init)
	s.relay.connect(resp)
	s.relay.run()

	require.Error(t, init.err)
	assert.True(t, errors.Is(init.err, task.ErrNoCommonTask))
	assert.Equal(t, domain.CloseNoSharedTask, signaling.CloseCodeFor(init.err))
	require.NotNil(t, resp.dropped)
	assert.Equal(t, domain.CloseNoSharedTask, *resp.dropped)
}

func TestServerKeyMismatch(t *testing.T) {
	s := newSession(t)
	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	wrong := other.PublicKey()
	it, _ := tokens(t)

	sig, err := signaling.New(signaling.Config{
		Role:      domain.Initiator,
		Permanent: s.initPerm,
		AuthToken: it,
		ServerKey: &wrong,
		Tasks:     []task.Task{&stubTask{name: "v1.stub"}},
		Logger:    testLogger(t),
	})
	require.NoError(t, err)
	c := &client{sig: sig, perm: s.initPerm}

	s.relay.connect(c)
	s.relay.run()
	require.Error(t, c.err)
	assert.Equal(t, domain.CloseInvalidKey, signaling.CloseCodeFor(c.err))
	assert.Empty(t, c.transitions)
}

func TestConfigValidation(t *testing.T) {
	perm, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	token, err := crypto.NewAuthToken()
	require.NoError(t, err)
	own := perm.PublicKey()
	tasks := []task.Task{&stubTask{name: "v1.stub"}}
	logger := testLogger(t)

	cases := []struct {
		name string
		cfg  signaling.Config
	}{
		{"no key pair", signaling.Config{Role: domain.Initiator, AuthToken: token, Tasks: tasks, Logger: logger}},
		{"no tasks", signaling.Config{Role: domain.Initiator, Permanent: perm, AuthToken: token, Logger: logger}},
		{"no logger", signaling.Config{Role: domain.Initiator, Permanent: perm, AuthToken: token, Tasks: tasks}},
		{"initiator without token", signaling.Config{Role: domain.Initiator, Permanent: perm, Tasks: tasks, Logger: logger}},
		{"responder without path", signaling.Config{Role: domain.Responder, Permanent: perm, Tasks: tasks, Logger: logger}},
		{"responder to itself", signaling.Config{Role: domain.Responder, Permanent: perm, InitiatorKey: &own, Tasks: tasks, Logger: logger}},
		{"no role", signaling.Config{Permanent: perm, Tasks: tasks, Logger: logger}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := signaling.New(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCloseCodeFor(t *testing.T) {
	assert.Equal(t, domain.CloseNormal, signaling.CloseCodeFor(nil))
	assert.Equal(t, domain.CloseProtocolError, signaling.CloseCodeFor(crypto.ErrDecryptionFailed))
	assert.Equal(t, domain.CloseInternalError, signaling.CloseCodeFor(errors.New("boom")))
}
