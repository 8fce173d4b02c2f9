package signaling_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
	"saltyrtc/internal/signaling"
	"saltyrtc/internal/tasks/chat"
)

// relaySender hands task messages of c to the fake relay, the way the
// relay client does for a live connection.
type relaySender struct {
	relay *fakeRelay
	c     *client
}

func (s relaySender) Send(payload []byte) error {
	frame, err := s.c.sig.HandleOutgoingTaskMessage(payload)
	if err != nil {
		return err
	}
	s.relay.route(s.c, frame)
	return nil
}

func (s *session) chatClient(t *testing.T, role domain.Role, nick string, token *crypto.AuthToken) (*client, *chat.Task) {
	t.Helper()
	ct, err := chat.New(nick, testLogger(t))
	require.NoError(t, err)
	cfg := signaling.Config{
		Role:      role,
		AuthToken: token,
		ServerKey: s.relay.serverKey(),
		Tasks:     []task.Task{ct},
		Logger:    testLogger(t),
	}
	perm := s.initPerm
	if role == domain.Responder {
		perm = s.respPerm
		ipk := s.initPerm.PublicKey()
		cfg.InitiatorKey = &ipk
	}
	cfg.Permanent = perm
	sig, err := signaling.New(cfg)
	require.NoError(t, err)
	return &client{sig: sig, perm: perm}, ct
}

func nextEvent(t *testing.T, ct *chat.Task) chat.Event {
	t.Helper()
	select {
	case ev := <-ct.Events():
		return ev
	default:
		t.Fatal("no chat event")
		return chat.Event{}
	}
}

func TestChatOverSignaling(t *testing.T) {
	s := newSession(t)
	it, rt := tokens(t)
	init, alice := s.chatClient(t, domain.Initiator, "alice", it)
	resp, bob := s.chatClient(t, domain.Responder, "bob", rt)

	s.relay.connect(init)
	s.relay.connect(resp)
	s.relay.run()
	require.NoError(t, init.err)
	require.NoError(t, resp.err)
	require.Equal(t, state.Task, init.sig.State())
	require.Equal(t, state.Task, resp.sig.State())
	assert.Equal(t, "bob", alice.PeerNickname())
	assert.Equal(t, "alice", bob.PeerNickname())

	alice.Start(relaySender{relay: s.relay, c: init})
	bob.Start(relaySender{relay: s.relay, c: resp})
	assert.Equal(t, chat.EventReady, nextEvent(t, alice).Kind)
	assert.Equal(t, chat.EventReady, nextEvent(t, bob).Kind)

	require.NoError(t, bob.SendMessage("hi"))
	s.relay.run()
	require.NoError(t, init.err)
	assert.Equal(t, chat.Event{Kind: chat.EventMessage, From: "bob", Text: "hi"}, nextEvent(t, alice))

	frame, err := resp.sig.HandleOutgoingApplication([]byte("hello"))
	require.NoError(t, err)
	s.relay.route(resp, frame)
	s.relay.run()
	require.NoError(t, init.err)
	_, failed := init.sig.Failed()
	assert.False(t, failed)
	assert.Equal(t, chat.Event{Kind: chat.EventApplication, From: "bob", Text: "hello"}, nextEvent(t, alice))

	require.NoError(t, alice.ChangeNickname("alice2"))
	s.relay.run()
	require.NoError(t, resp.err)
	assert.Equal(t, chat.Event{Kind: chat.EventNickChange, From: "alice", Text: "alice2"}, nextEvent(t, bob))
}
