package handshake

import (
	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
)

// InitiatorConfig configures a responder's handshake with the initiator.
type InitiatorConfig struct {
	Permanent *crypto.KeyPair
	// InitiatorKey is the initiator's permanent key, which is also the path.
	InitiatorKey crypto.PublicKey
	// AuthToken is required on first contact. Without it the initiator must
	// already trust our permanent key.
	AuthToken *crypto.AuthToken
	Tasks     []task.Task
}

// InitiatorHandshake is the responder side of the peer handshake.
type InitiatorHandshake struct {
	cfg     InitiatorConfig
	tracker *nonce.Tracker
	machine *state.Machine[state.InitiatorHandshakeState]

	session       *crypto.KeyPair
	permShared    *crypto.SharedKey
	sessionShared *crypto.SharedKey
	chosen        task.Task
}

// NewInitiatorHandshake prepares a handshake with a fresh session key pair.
func NewInitiatorHandshake(cfg InitiatorConfig, tracker *nonce.Tracker) (*InitiatorHandshake, error) {
	session, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &InitiatorHandshake{
		cfg:        cfg,
		tracker:    tracker,
		machine:    state.NewMachine(state.InitiatorNew),
		session:    session,
		permShared: cfg.Permanent.SharedKey(cfg.InitiatorKey),
	}, nil
}

// Machine exposes the handshake state.
func (h *InitiatorHandshake) Machine() *state.Machine[state.InitiatorHandshakeState] {
	return h.machine
}

// Done reports whether the initiator accepted us and chose a task.
func (h *InitiatorHandshake) Done() bool { return h.machine.At(state.InitiatorAuthReceived) }

// Task returns the chosen task once Done.
func (h *InitiatorHandshake) Task() task.Task { return h.chosen }

// SessionKey returns the session shared key once the key exchange finished.
func (h *InitiatorHandshake) SessionKey() *crypto.SharedKey { return h.sessionShared }

// PeerKey returns the initiator's permanent key.
func (h *InitiatorHandshake) PeerKey() crypto.PublicKey { return h.cfg.InitiatorKey }

// Openers lists the keys that may open the next frame from the initiator.
func (h *InitiatorHandshake) Openers() []envelope.Opener {
	switch h.machine.Current() {
	case state.InitiatorNew, state.InitiatorTokenSent, state.InitiatorKeySent:
		return openers(h.permShared)
	default:
		return openers(h.sessionShared)
	}
}

// Fail aborts the handshake.
func (h *InitiatorHandshake) Fail(code domain.CloseCode, err error) error {
	return fail(h.machine, domain.InitiatorAddress, code, err, "aborted")
}

// Start sends the token (first contact only) and our session key.
func (h *InitiatorHandshake) Start() ([]Outgoing, error) {
	if err := failed(h.machine, domain.InitiatorAddress); err != nil {
		return nil, err
	}
	if !h.machine.At(state.InitiatorNew) {
		return nil, fail(h.machine, domain.InitiatorAddress, domain.CloseInternalError, nil, "started twice")
	}

	var out []Outgoing
	if h.cfg.AuthToken != nil {
		pk := h.cfg.Permanent.PublicKey()
		out = append(out, Outgoing{
			Destination: domain.InitiatorAddress,
			Message:     &message.Token{Key: pk.Slice()},
			Key:         h.cfg.AuthToken,
		})
		if err := h.machine.Advance(state.InitiatorTokenSent); err != nil {
			return nil, err
		}
	}

	spk := h.session.PublicKey()
	out = append(out, Outgoing{
		Destination: domain.InitiatorAddress,
		Message:     &message.Key{Key: spk.Slice()},
		Key:         h.permShared,
	})
	if err := h.machine.Advance(state.InitiatorKeySent); err != nil {
		return nil, err
	}
	return out, nil
}

// Handle processes one message from the initiator.
func (h *InitiatorHandshake) Handle(env *envelope.Envelope) ([]Outgoing, error) {
	if err := failed(h.machine, domain.InitiatorAddress); err != nil {
		return nil, err
	}
	switch m := env.Message.(type) {
	case *message.Key:
		if !h.machine.At(state.InitiatorKeySent) || !openedWith(env, h.permShared) {
			return nil, unexpected(h.machine, domain.InitiatorAddress, m)
		}
		return h.handleKey(m)
	case *message.Auth:
		if !h.machine.At(state.InitiatorAuthSent) || !openedWith(env, h.sessionShared) {
			return nil, unexpected(h.machine, domain.InitiatorAddress, m)
		}
		return nil, h.handleAuth(m)
	default:
		return nil, unexpected(h.machine, domain.InitiatorAddress, m)
	}
}

func (h *InitiatorHandshake) handleKey(m *message.Key) ([]Outgoing, error) {
	theirs, err := crypto.PublicKeyFromBytes(m.Key)
	if err != nil {
		return nil, fail(h.machine, domain.InitiatorAddress, domain.CloseProtocolError, err, "bad session key")
	}
	if theirs.Equal(h.cfg.InitiatorKey) {
		return nil, fail(h.machine, domain.InitiatorAddress, domain.CloseInvalidKey, nil, "session key equals permanent key")
	}
	h.sessionShared = h.session.SharedKey(theirs)
	if err := h.machine.Advance(state.InitiatorKeyReceived); err != nil {
		return nil, err
	}

	cookie, ok := echoCookie(h.tracker, domain.InitiatorAddress)
	if !ok {
		return nil, fail(h.machine, domain.InitiatorAddress, domain.CloseInternalError, nil, "initiator cookie not recorded")
	}
	auth := &message.Auth{
		YourCookie: cookie,
		Tasks:      task.Names(h.cfg.Tasks),
		Data:       taskData(h.cfg.Tasks),
	}
	if err := h.machine.Advance(state.InitiatorAuthSent); err != nil {
		return nil, err
	}
	return []Outgoing{{Destination: domain.InitiatorAddress, Message: auth, Key: h.sessionShared}}, nil
}

func (h *InitiatorHandshake) handleAuth(m *message.Auth) error {
	echoed, err := nonce.CookieFromBytes(m.YourCookie)
	if err != nil {
		return fail(h.machine, domain.InitiatorAddress, domain.CloseProtocolError, err, "bad your_cookie")
	}
	if err := h.tracker.ConfirmCookie(domain.InitiatorAddress, echoed); err != nil {
		return fail(h.machine, domain.InitiatorAddress, domain.CloseProtocolError, err, "initiator did not repeat our cookie")
	}
	if m.Task == "" {
		return fail(h.machine, domain.InitiatorAddress, domain.CloseProtocolError, nil, "auth lacks a chosen task")
	}
	if err := task.Accept(task.Names(h.cfg.Tasks), m.Task); err != nil {
		return fail(h.machine, domain.InitiatorAddress, domain.CloseNoSharedTask, err, "task selection")
	}
	chosen, _ := task.Find(h.cfg.Tasks, m.Task)
	if err := chosen.Init(m.Data[m.Task]); err != nil {
		return fail(h.machine, domain.InitiatorAddress, domain.CloseProtocolError, err, "initialising task %s", m.Task)
	}
	h.chosen = chosen
	h.cfg.AuthToken.Wipe()
	h.session.Wipe()
	return h.machine.Advance(state.InitiatorAuthReceived)
}
