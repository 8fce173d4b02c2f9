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

// ResponderConfig configures the initiator's handshake with one responder.
type ResponderConfig struct {
	ID        domain.Address
	Permanent *crypto.KeyPair
	// AuthToken identifies a responder on first contact.
	AuthToken *crypto.AuthToken
	// TrustedKey is a responder permanent key remembered from an earlier
	// pairing. It is tried before the token.
	TrustedKey *crypto.PublicKey
	// Tasks in preference order.
	Tasks []task.Task
}

// ResponderHandshake is the initiator side of the peer handshake with one
// responder.
type ResponderHandshake struct {
	cfg     ResponderConfig
	tracker *nonce.Tracker
	machine *state.Machine[state.ResponderHandshakeState]

	session       *crypto.KeyPair
	peerKey       crypto.PublicKey
	permShared    *crypto.SharedKey
	sessionShared *crypto.SharedKey
	usedToken     bool
	chosen        task.Task
}

// NewResponderHandshake prepares a handshake with a fresh session key pair.
func NewResponderHandshake(cfg ResponderConfig, tracker *nonce.Tracker) (*ResponderHandshake, error) {
	if !cfg.ID.IsResponder() {
		return nil, envelope.AddressMismatch("%s is not a responder", cfg.ID)
	}
	session, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	h := &ResponderHandshake{
		cfg:     cfg,
		tracker: tracker,
		machine: state.NewMachine(state.ResponderNew),
		session: session,
	}
	if cfg.TrustedKey != nil {
		h.peerKey = *cfg.TrustedKey
		h.permShared = cfg.Permanent.SharedKey(h.peerKey)
	}
	return h, nil
}

// ID is the responder's address.
func (h *ResponderHandshake) ID() domain.Address { return h.cfg.ID }

// Machine exposes the handshake state.
func (h *ResponderHandshake) Machine() *state.Machine[state.ResponderHandshakeState] {
	return h.machine
}

// Done reports whether the handshake completed and a task was chosen.
func (h *ResponderHandshake) Done() bool { return h.machine.At(state.ResponderAuthSent) }

// Task returns the chosen task once Done.
func (h *ResponderHandshake) Task() task.Task { return h.chosen }

// SessionKey returns the session shared key once the key exchange finished.
func (h *ResponderHandshake) SessionKey() *crypto.SharedKey { return h.sessionShared }

// PeerKey returns the responder's permanent key, known after the token or
// from the trust store.
func (h *ResponderHandshake) PeerKey() crypto.PublicKey { return h.peerKey }

// UsedToken reports whether the responder identified itself with the auth
// token rather than a trusted key.
func (h *ResponderHandshake) UsedToken() bool { return h.usedToken }

// Openers lists the keys that may open the next frame from the responder.
// A trusted key comes before the token.
func (h *ResponderHandshake) Openers() []envelope.Opener {
	switch h.machine.Current() {
	case state.ResponderNew:
		return openers(h.permShared, h.cfg.AuthToken)
	case state.ResponderTokenReceived:
		return openers(h.permShared)
	default:
		return openers(h.sessionShared)
	}
}

// Fail aborts the handshake.
func (h *ResponderHandshake) Fail(code domain.CloseCode, err error) error {
	return fail(h.machine, h.cfg.ID, code, err, "aborted")
}

// Handle processes one message from the responder. On a task mismatch the
// returned messages are still to be sent along with the error.
func (h *ResponderHandshake) Handle(env *envelope.Envelope) ([]Outgoing, error) {
	if err := failed(h.machine, h.cfg.ID); err != nil {
		return nil, err
	}
	switch m := env.Message.(type) {
	case *message.Token:
		if !h.machine.At(state.ResponderNew) || !openedWith(env, h.cfg.AuthToken) {
			return nil, unexpected(h.machine, h.cfg.ID, m)
		}
		return nil, h.handleToken(m)
	case *message.Key:
		trustedFirst := h.machine.At(state.ResponderNew) && openedWith(env, h.permShared) && !h.usedToken
		afterToken := h.machine.At(state.ResponderTokenReceived) && openedWith(env, h.permShared)
		if !trustedFirst && !afterToken {
			return nil, unexpected(h.machine, h.cfg.ID, m)
		}
		return h.handleKey(m)
	case *message.Auth:
		if !h.machine.At(state.ResponderKeySent) || !openedWith(env, h.sessionShared) {
			return nil, unexpected(h.machine, h.cfg.ID, m)
		}
		return h.handleAuth(m)
	default:
		return nil, unexpected(h.machine, h.cfg.ID, m)
	}
}

func (h *ResponderHandshake) handleToken(m *message.Token) error {
	pk, err := crypto.PublicKeyFromBytes(m.Key)
	if err != nil {
		return fail(h.machine, h.cfg.ID, domain.CloseProtocolError, err, "bad permanent key in token")
	}
	if pk.Equal(h.cfg.Permanent.PublicKey()) {
		return fail(h.machine, h.cfg.ID, domain.CloseInvalidKey, nil, "responder claims our permanent key")
	}
	h.peerKey = pk
	h.permShared = h.cfg.Permanent.SharedKey(pk)
	h.usedToken = true
	return h.machine.Advance(state.ResponderTokenReceived)
}

func (h *ResponderHandshake) handleKey(m *message.Key) ([]Outgoing, error) {
	theirs, err := crypto.PublicKeyFromBytes(m.Key)
	if err != nil {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseProtocolError, err, "bad session key")
	}
	if theirs.Equal(h.peerKey) {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseInvalidKey, nil, "session key equals permanent key")
	}
	h.sessionShared = h.session.SharedKey(theirs)
	if err := h.machine.Advance(state.ResponderKeyReceived); err != nil {
		return nil, err
	}

	spk := h.session.PublicKey()
	out := []Outgoing{{
		Destination: h.cfg.ID,
		Message:     &message.Key{Key: spk.Slice()},
		Key:         h.permShared,
	}}
	if err := h.machine.Advance(state.ResponderKeySent); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *ResponderHandshake) handleAuth(m *message.Auth) ([]Outgoing, error) {
	echoed, err := nonce.CookieFromBytes(m.YourCookie)
	if err != nil {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseProtocolError, err, "bad your_cookie")
	}
	if err := h.tracker.ConfirmCookie(h.cfg.ID, echoed); err != nil {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseProtocolError, err, "responder did not repeat our cookie")
	}
	if m.Tasks == nil {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseProtocolError, nil, "auth lacks a task list")
	}

	name, err := task.Negotiate(task.Names(h.cfg.Tasks), m.Tasks)
	if err != nil {
		out := []Outgoing{{
			Destination: h.cfg.ID,
			Message:     &message.Close{Reason: int(domain.CloseNoSharedTask)},
			Key:         h.sessionShared,
		}}
		return out, fail(h.machine, h.cfg.ID, domain.CloseNoSharedTask, err, "task negotiation")
	}
	chosen, _ := task.Find(h.cfg.Tasks, name)
	if err := chosen.Init(m.Data[name]); err != nil {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseProtocolError, err, "initialising task %s", name)
	}
	if err := h.machine.Advance(state.ResponderAuthReceived); err != nil {
		return nil, err
	}

	cookie, ok := echoCookie(h.tracker, h.cfg.ID)
	if !ok {
		return nil, fail(h.machine, h.cfg.ID, domain.CloseInternalError, nil, "responder cookie not recorded")
	}
	out := []Outgoing{{
		Destination: h.cfg.ID,
		Message: &message.Auth{
			YourCookie: cookie,
			Task:       name,
			Data:       map[string][]byte{name: chosen.Data()},
		},
		Key: h.sessionShared,
	}}
	if err := h.machine.Advance(state.ResponderAuthSent); err != nil {
		return nil, err
	}
	h.chosen = chosen
	h.session.Wipe()
	return out, nil
}
