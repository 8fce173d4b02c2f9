package handshake

import (
	"bytes"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/state"
)

// ServerConfig configures the server handshake.
type ServerConfig struct {
	Role      domain.Role
	Permanent *crypto.KeyPair
	// ServerKey is the relay's permanent public key. When set, the
	// server-auth signed_keys field is required and verified.
	ServerKey *crypto.PublicKey
	// PingInterval is announced to the server in seconds, 0 disables pings.
	PingInterval uint32
}

// Server drives the handshake with the relay server.
type Server struct {
	cfg     ServerConfig
	tracker *nonce.Tracker
	machine *state.Machine[state.ServerHandshakeState]

	sessionKey crypto.PublicKey
	shared     *crypto.SharedKey

	address            domain.Address
	initiatorConnected bool
	responders         []domain.Address
	signedKeysVerified bool
}

// NewServer returns a server handshake. tracker must already know the server
// address.
func NewServer(cfg ServerConfig, tracker *nonce.Tracker) *Server {
	return &Server{
		cfg:     cfg,
		tracker: tracker,
		machine: state.NewMachine(state.ServerNew),
	}
}

// Machine exposes the handshake state.
func (s *Server) Machine() *state.Machine[state.ServerHandshakeState] { return s.machine }

// Done reports whether server-auth was accepted.
func (s *Server) Done() bool { return s.machine.At(state.ServerDone) }

// ExpectsPlaintext reports whether the next server frame is the plaintext
// server-hello.
func (s *Server) ExpectsPlaintext() bool { return s.machine.At(state.ServerNew) }

// Openers returns the key for encrypted server frames.
func (s *Server) Openers() []envelope.Opener {
	if s.shared == nil {
		return nil
	}
	return []envelope.Opener{s.shared}
}

// Key returns the key shared with the server session, nil before server-hello.
func (s *Server) Key() *crypto.SharedKey { return s.shared }

// Address is the address assigned by server-auth.
func (s *Server) Address() domain.Address { return s.address }

// InitiatorConnected is reported to responders in server-auth.
func (s *Server) InitiatorConnected() bool { return s.initiatorConnected }

// Responders lists the responders reported to the initiator in server-auth.
func (s *Server) Responders() []domain.Address { return s.responders }

// SignedKeysVerified reports whether signed_keys was checked against a
// configured server key.
func (s *Server) SignedKeysVerified() bool { return s.signedKeysVerified }

// Fail aborts the handshake.
func (s *Server) Fail(code domain.CloseCode, err error) error {
	return fail(s.machine, domain.ServerAddress, code, err, "aborted")
}

// Handle processes one message from the server.
func (s *Server) Handle(env *envelope.Envelope) ([]Outgoing, error) {
	if err := failed(s.machine, domain.ServerAddress); err != nil {
		return nil, err
	}
	switch m := env.Message.(type) {
	case *message.ServerHello:
		if !s.machine.At(state.ServerNew) {
			return nil, unexpected(s.machine, domain.ServerAddress, m)
		}
		return s.handleHello(env.Nonce, m)
	case *message.ServerAuth:
		if !s.machine.At(state.ClientInfoSent) {
			return nil, unexpected(s.machine, domain.ServerAddress, m)
		}
		return nil, s.handleAuth(env.Nonce, m)
	default:
		return nil, unexpected(s.machine, domain.ServerAddress, m)
	}
}

func (s *Server) handleHello(n nonce.Nonce, m *message.ServerHello) ([]Outgoing, error) {
	if n.Destination != 0 {
		return nil, fail(s.machine, domain.ServerAddress, domain.CloseProtocolError,
			envelope.AddressMismatch("server-hello to %s", n.Destination), "bad server-hello")
	}
	key, err := crypto.PublicKeyFromBytes(m.Key)
	if err != nil {
		return nil, fail(s.machine, domain.ServerAddress, domain.CloseProtocolError, err, "bad server session key")
	}
	if key.Equal(s.cfg.Permanent.PublicKey()) {
		return nil, fail(s.machine, domain.ServerAddress, domain.CloseInvalidKey, nil, "server session key equals our permanent key")
	}
	s.sessionKey = key
	s.shared = s.cfg.Permanent.SharedKey(key)

	theirs, ok := s.tracker.TheirCookie(domain.ServerAddress)
	if !ok {
		return nil, fail(s.machine, domain.ServerAddress, domain.CloseInternalError, nil, "server cookie not recorded")
	}

	var out []Outgoing
	if s.cfg.Role == domain.Responder {
		pk := s.cfg.Permanent.PublicKey()
		out = append(out, Outgoing{
			Destination: domain.ServerAddress,
			Message:     &message.ClientHello{Key: pk.Slice()},
		})
	}
	auth := &message.ClientAuth{
		YourCookie:   theirs[:],
		Subprotocols: []string{message.Subprotocol},
		PingInterval: s.cfg.PingInterval,
	}
	if s.cfg.ServerKey != nil {
		auth.YourKey = s.cfg.ServerKey.Slice()
	}
	out = append(out, Outgoing{Destination: domain.ServerAddress, Message: auth, Key: s.shared})

	if err := s.machine.Advance(state.ClientInfoSent); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleAuth(n nonce.Nonce, m *message.ServerAuth) error {
	echoed, err := nonce.CookieFromBytes(m.YourCookie)
	if err != nil {
		return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError, err, "bad your_cookie")
	}
	if err := s.tracker.ConfirmCookie(domain.ServerAddress, echoed); err != nil {
		return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError, err, "server did not repeat our cookie")
	}

	switch s.cfg.Role {
	case domain.Initiator:
		if !n.Destination.IsInitiator() {
			return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError,
				envelope.AddressMismatch("initiator assigned %s", n.Destination), "bad address assignment")
		}
		if m.InitiatorConnected != nil {
			return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError, nil, "initiator_connected sent to initiator")
		}
		for _, id := range m.Responders {
			s.responders = append(s.responders, domain.Address(id))
		}
	case domain.Responder:
		if !n.Destination.IsResponder() {
			return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError,
				envelope.AddressMismatch("responder assigned %s", n.Destination), "bad address assignment")
		}
		if m.InitiatorConnected == nil {
			return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError, nil, "server-auth lacks initiator_connected")
		}
		if m.Responders != nil {
			return fail(s.machine, domain.ServerAddress, domain.CloseProtocolError, nil, "responders sent to responder")
		}
		s.initiatorConnected = *m.InitiatorConnected
	}

	if s.cfg.ServerKey != nil {
		if err := s.verifySignedKeys(n, m.SignedKeys); err != nil {
			return fail(s.machine, domain.ServerAddress, domain.CloseInvalidKey, err, "signed_keys")
		}
		s.signedKeysVerified = true
	}

	s.address = n.Destination
	return s.machine.Advance(state.ServerDone)
}

// verifySignedKeys checks that the server's permanent key boxed its session
// key together with our permanent key, using the server-auth nonce.
func (s *Server) verifySignedKeys(n nonce.Nonce, signed []byte) error {
	if len(signed) == 0 {
		return &crypto.Error{Kind: crypto.KindDecryptionFailed, Msg: "signed_keys missing"}
	}
	nb := n.Bytes()
	plain, err := crypto.OpenFrom(signed, &nb, *s.cfg.ServerKey, s.cfg.Permanent)
	if err != nil {
		return err
	}
	ours := s.cfg.Permanent.PublicKey()
	want := append(s.sessionKey.Slice(), ours.Slice()...)
	if !bytes.Equal(plain, want) {
		return &crypto.Error{Kind: crypto.KindDecryptionFailed, Msg: "signed_keys do not match"}
	}
	return nil
}
