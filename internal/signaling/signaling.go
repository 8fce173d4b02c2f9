package signaling

import (
	"errors"
	"fmt"
	"slices"

	"gopkg.in/op/go-logging.v1"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/instrument"
	"saltyrtc/internal/protocol/envelope"
	"saltyrtc/internal/protocol/handshake"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
)

// Config configures a signaling session.
type Config struct {
	Role      domain.Role
	Permanent *crypto.KeyPair
	// AuthToken is generated by the initiator and handed to the responder
	// out of band. It may be nil when the peer is already trusted.
	AuthToken *crypto.AuthToken
	// InitiatorKey is the path a responder connects to.
	InitiatorKey *crypto.PublicKey
	// TrustedResponderKey lets the initiator identify a responder it paired
	// with before.
	TrustedResponderKey *crypto.PublicKey
	// ServerKey enables signed_keys verification.
	ServerKey *crypto.PublicKey
	// Tasks in preference order.
	Tasks []task.Task
	// PingInterval in seconds, 0 disables pings.
	PingInterval uint32
	Logger       *logging.Logger
	// TrustStore, when set, records peers after a successful handshake.
	TrustStore domain.TrustStore
}

func (c *Config) validate() error {
	if c.Permanent == nil {
		return errors.New("signaling: no permanent key pair")
	}
	if len(c.Tasks) == 0 {
		return errors.New("signaling: no tasks")
	}
	if c.Logger == nil {
		return errors.New("signaling: no logger")
	}
	switch c.Role {
	case domain.Initiator:
		if c.AuthToken == nil && c.TrustedResponderKey == nil {
			return errors.New("signaling: initiator needs an auth token or a trusted responder")
		}
	case domain.Responder:
		if c.InitiatorKey == nil {
			return errors.New("signaling: responder needs the initiator key")
		}
		if c.InitiatorKey.Equal(c.Permanent.PublicKey()) {
			return errors.New("signaling: initiator key equals our own key")
		}
	default:
		return fmt.Errorf("signaling: invalid role %v", c.Role)
	}
	return nil
}

// Result is the outcome of one incoming frame.
type Result struct {
	// Transition is set when the signaling state changed.
	Transition *state.SignalingState
	// Outgoing frames, in order.
	Outgoing [][]byte
	// Closed is set when the peer ended the session.
	Closed *domain.CloseCode
}

// Signaling is one signaling session.
type Signaling struct {
	cfg Config
	log *logging.Logger

	tracker *nonce.Tracker
	codec   *envelope.Codec
	machine *state.Machine[state.SignalingState]
	server  *handshake.Server
	address domain.Address

	// responder role
	initiator *handshake.InitiatorHandshake
	// initiator role
	responders map[domain.Address]*handshake.ResponderHandshake

	peer       domain.Address
	sessionKey *crypto.SharedKey
	task       task.Task
	closed     bool
}

// New returns a session waiting for server-hello.
func New(cfg Config) (*Signaling, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tracker := nonce.NewTracker()
	if err := tracker.Register(domain.ServerAddress); err != nil {
		return nil, err
	}
	return &Signaling{
		cfg:     cfg,
		log:     cfg.Logger,
		tracker: tracker,
		codec:   envelope.NewCodec(tracker),
		machine: state.NewMachine(state.ServerHandshake),
		server: handshake.NewServer(handshake.ServerConfig{
			Role:         cfg.Role,
			Permanent:    cfg.Permanent,
			ServerKey:    cfg.ServerKey,
			PingInterval: cfg.PingInterval,
		}, tracker),
		responders: make(map[domain.Address]*handshake.ResponderHandshake),
	}, nil
}

// State returns the current signaling state.
func (s *Signaling) State() state.SignalingState { return s.machine.Current() }

// Failed reports whether the session was aborted, and why. State keeps
// returning the state the failure happened in.
func (s *Signaling) Failed() (string, bool) { return s.machine.Failed() }

// Role returns our role.
func (s *Signaling) Role() domain.Role { return s.cfg.Role }

// Path is the lower-hex initiator key the WebSocket URL ends with.
func (s *Signaling) Path() string {
	if s.cfg.Role == domain.Initiator {
		return s.cfg.Permanent.PublicKeyHex()
	}
	return s.cfg.InitiatorKey.Hex()
}

// PingInterval is the keep-alive interval in seconds, 0 when disabled.
func (s *Signaling) PingInterval() uint32 { return s.cfg.PingInterval }

// Address is our address on the path, 0 until server-auth.
func (s *Signaling) Address() domain.Address { return s.address }

// Peer is the address of the chosen peer once in the task phase.
func (s *Signaling) Peer() domain.Address { return s.peer }

// Task returns the chosen task, nil before the task phase.
func (s *Signaling) Task() task.Task { return s.task }

// HandleIncoming processes one frame. On error the session is over; the
// frames in the returned result, if any, should still be flushed before
// closing the connection with CloseCodeFor(err).
func (s *Signaling) HandleIncoming(frame []byte) (*Result, error) {
	res := new(Result)
	if s.closed {
		return res, &StateError{Kind: KindClosed, State: s.State()}
	}
	n, err := envelope.PeekNonce(frame)
	if err != nil {
		return res, s.abort(err)
	}
	if err := s.checkAddresses(n); err != nil {
		return res, s.abort(err)
	}
	if n.Source.IsServer() {
		err = s.handleServer(res, frame)
	} else {
		err = s.handlePeer(res, frame, n.Source)
	}
	if err != nil {
		return res, s.abort(err)
	}
	return res, nil
}

func (s *Signaling) checkAddresses(n nonce.Nonce) error {
	if !s.server.Done() {
		if !n.Source.IsServer() {
			return envelope.AddressMismatch("%s sent a message before the server handshake", n.Source)
		}
		return nil
	}
	if n.Destination != s.address {
		return envelope.AddressMismatch("message for %s, we are %s", n.Destination, s.address)
	}
	switch {
	case n.Source.IsServer():
	case s.cfg.Role == domain.Initiator && n.Source.IsResponder():
	case s.cfg.Role == domain.Responder && n.Source.IsInitiator():
	default:
		return envelope.AddressMismatch("%s may not talk to a %s", n.Source, s.cfg.Role)
	}
	return nil
}

func (s *Signaling) handleServer(res *Result, frame []byte) error {
	var (
		env *envelope.Envelope
		err error
	)
	if s.server.ExpectsPlaintext() {
		env, err = s.codec.DecodePlain(frame)
	} else {
		env, err = s.codec.Decode(frame, s.server.Openers()...)
	}
	if err != nil {
		if !s.server.Done() {
			return s.server.Fail(domain.CloseProtocolError, err)
		}
		return err
	}
	instrument.MessageReceived(env.Type())
	s.log.Debugf("<- %s from server", env.Type())

	if s.server.Done() {
		return s.handleControl(res, env.Message)
	}

	out, err := s.server.Handle(env)
	if err != nil {
		return err
	}
	if err := s.send(res, out); err != nil {
		return err
	}
	if !s.server.Done() {
		return nil
	}

	s.address = s.server.Address()
	if key := s.cfg.ServerKey; key != nil {
		s.log.Noticef("Server key %s verified", crypto.Fingerprint(*key))
	}
	s.log.Noticef("Server handshake done, we are %s", s.address)
	if err := s.transition(res, state.PeerHandshake); err != nil {
		return err
	}

	switch s.cfg.Role {
	case domain.Initiator:
		for _, id := range s.server.Responders() {
			if err := s.addResponder(id); err != nil {
				return err
			}
		}
	case domain.Responder:
		if s.server.InitiatorConnected() {
			return s.startInitiatorHandshake(res)
		}
		s.log.Info("Waiting for the initiator")
	}
	return nil
}

// handleControl processes server messages after the server handshake.
func (s *Signaling) handleControl(res *Result, msg message.Message) error {
	switch m := msg.(type) {
	case *message.NewResponder:
		if s.cfg.Role != domain.Initiator {
			break
		}
		id := domain.Address(m.ID)
		if s.machine.At(state.Task) {
			s.log.Infof("Dropping late %s", id)
			return s.dropResponder(res, id, domain.CloseDroppedByInitiator)
		}
		return s.addResponder(id)

	case *message.NewInitiator:
		if s.cfg.Role != domain.Responder {
			break
		}
		if s.machine.At(state.Task) {
			s.log.Warning("New initiator during the task phase, ignoring")
			return nil
		}
		return s.startInitiatorHandshake(res)

	case *message.SendError:
		src, dst := domain.Address(m.ID[0]), domain.Address(m.ID[1])
		s.log.Warningf("Server could not relay a message from %s to %s", src, dst)
		if s.machine.At(state.PeerHandshake) && s.cfg.Role == domain.Initiator {
			s.forgetResponder(dst)
		}
		return nil

	case *message.Disconnected:
		id := domain.Address(m.ID)
		s.log.Noticef("%s disconnected", id)
		if s.machine.At(state.Task) && id == s.peer {
			return s.peerClosed(res, domain.CloseGoingAway)
		}
		if s.cfg.Role == domain.Initiator {
			s.forgetResponder(id)
		}
		return nil
	}
	return unexpected(domain.ServerAddress, msg, s.State())
}

func (s *Signaling) addResponder(id domain.Address) error {
	if err := s.tracker.Register(id); err != nil {
		return err
	}
	h, err := handshake.NewResponderHandshake(handshake.ResponderConfig{
		ID:         id,
		Permanent:  s.cfg.Permanent,
		AuthToken:  s.cfg.AuthToken,
		TrustedKey: s.cfg.TrustedResponderKey,
		Tasks:      s.cfg.Tasks,
	}, s.tracker)
	if err != nil {
		return err
	}
	s.responders[id] = h
	s.log.Infof("Responder %s joined", id)
	return nil
}

func (s *Signaling) forgetResponder(id domain.Address) {
	if _, ok := s.responders[id]; !ok {
		return
	}
	delete(s.responders, id)
	s.tracker.Forget(id)
}

func (s *Signaling) dropResponder(res *Result, id domain.Address, code domain.CloseCode) error {
	s.forgetResponder(id)
	return s.send(res, []handshake.Outgoing{{
		Destination: domain.ServerAddress,
		Message:     &message.DropResponder{ID: int(id), Reason: int(code)},
		Key:         s.server.Key(),
	}})
}

func (s *Signaling) startInitiatorHandshake(res *Result) error {
	if err := s.tracker.Register(domain.InitiatorAddress); err != nil {
		return err
	}
	h, err := handshake.NewInitiatorHandshake(handshake.InitiatorConfig{
		Permanent:    s.cfg.Permanent,
		InitiatorKey: *s.cfg.InitiatorKey,
		AuthToken:    s.cfg.AuthToken,
		Tasks:        s.cfg.Tasks,
	}, s.tracker)
	if err != nil {
		return err
	}
	s.initiator = h
	out, err := h.Start()
	if err != nil {
		return err
	}
	return s.send(res, out)
}

// peerHandshake is what both peer handshake variants offer the session.
type peerHandshake interface {
	Openers() []envelope.Opener
	Handle(env *envelope.Envelope) ([]handshake.Outgoing, error)
	Fail(code domain.CloseCode, err error) error
	Done() bool
	Task() task.Task
	SessionKey() *crypto.SharedKey
	PeerKey() crypto.PublicKey
}

func (s *Signaling) handlePeer(res *Result, frame []byte, src domain.Address) error {
	if s.machine.At(state.Task) {
		if src != s.peer {
			s.log.Debugf("Ignoring message from %s during the task phase", src)
			return nil
		}
		return s.handleTaskFrame(res, frame)
	}

	var h peerHandshake
	switch {
	case s.cfg.Role == domain.Responder && s.initiator != nil:
		h = s.initiator
	case s.cfg.Role == domain.Initiator:
		if r, ok := s.responders[src]; ok {
			h = r
		}
	}
	if h == nil {
		return envelope.AddressMismatch("no handshake with %s", src)
	}

	env, err := s.codec.Decode(frame, h.Openers()...)
	if err != nil {
		code := domain.CloseProtocolError
		if errors.Is(err, crypto.ErrDecryptionFailed) && s.cfg.Role == domain.Initiator {
			code = domain.CloseInitiatorCouldNotDecrypt
		}
		return s.peerFailed(res, src, h.Fail(code, err))
	}
	instrument.MessageReceived(env.Type())
	s.log.Debugf("<- %s from %s", env.Type(), src)

	if m, ok := env.Message.(*message.Close); ok {
		code := domain.CloseCode(m.Reason)
		return s.peerFailed(res, src, h.Fail(code, fmt.Errorf("%s closed the handshake: %s", src, code)))
	}

	out, err := h.Handle(env)
	if sendErr := s.send(res, out); sendErr != nil && err == nil {
		err = sendErr
	}
	if err != nil {
		return s.peerFailed(res, src, err)
	}
	if h.Done() {
		return s.completeHandshake(res, src, h)
	}
	return nil
}

// peerFailed ends the session after a failed peer handshake. The initiator
// asks the server to drop the responder first.
func (s *Signaling) peerFailed(res *Result, src domain.Address, err error) error {
	code := CloseCodeFor(err)
	instrument.HandshakeFailure(src.String(), uint16(code))
	if s.cfg.Role == domain.Initiator && src.IsResponder() {
		if dropErr := s.dropResponder(res, src, code); dropErr != nil {
			s.log.Errorf("Dropping %s: %v", src, dropErr)
		}
	}
	return err
}

func (s *Signaling) completeHandshake(res *Result, src domain.Address, h peerHandshake) error {
	s.peer = src
	s.sessionKey = h.SessionKey()
	s.task = h.Task()
	s.codec.AcceptTaskTypes(s.task.SupportedTypes())

	if s.cfg.Role == domain.Initiator {
		others := make([]domain.Address, 0, len(s.responders))
		for id := range s.responders {
			if id != src {
				others = append(others, id)
			}
		}
		slices.Sort(others)
		for _, id := range others {
			if err := s.dropResponder(res, id, domain.CloseDroppedByInitiator); err != nil {
				return err
			}
		}
	}

	s.remember(h)
	s.cfg.AuthToken.Wipe()
	s.log.Noticef("Peer handshake with %s done, task %s", src, s.task.Name())
	return s.transition(res, state.Task)
}

func (s *Signaling) remember(h peerHandshake) {
	if s.cfg.TrustStore == nil {
		return
	}
	role := domain.Initiator
	if s.cfg.Role == domain.Initiator {
		role = domain.Responder
	}
	peer := domain.TrustedPeer{PublicKey: h.PeerKey(), PeerRole: role}
	if err := s.cfg.TrustStore.Trust(s.cfg.Permanent.PublicKey(), peer); err != nil {
		s.log.Warningf("Failed to remember peer: %v", err)
		return
	}
	s.log.Infof("Trusting %s %s", role, crypto.Fingerprint(peer.PublicKey))
}

func (s *Signaling) handleTaskFrame(res *Result, frame []byte) error {
	env, err := s.codec.Decode(frame, s.sessionKey)
	if err != nil {
		return err
	}
	instrument.MessageReceived(env.Type())

	switch m := env.Message.(type) {
	case *message.Close:
		return s.peerClosed(res, domain.CloseCode(m.Reason))
	case *message.Application:
		// Tasks get the bare data, see task.Task.OnMessage.
		return s.task.OnMessage(message.TypeApplication, m.Data)
	case *message.Task:
		return s.task.OnMessage(m.Kind, m.Raw)
	default:
		return unexpected(s.peer, m, s.State())
	}
}

func (s *Signaling) peerClosed(res *Result, code domain.CloseCode) error {
	s.log.Noticef("Peer closed the session: %s", code)
	s.closed = true
	s.task.Close(code)
	res.Closed = &code
	return nil
}

// HandleOutgoingTaskMessage frames a task message for the peer. payload is
// the message's complete MessagePack encoding.
func (s *Signaling) HandleOutgoingTaskMessage(payload []byte) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	typ, err := message.PeekType(payload)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(s.task.SupportedTypes(), typ) {
		return nil, fmt.Errorf("signaling: task %s does not send %q", s.task.Name(), typ)
	}
	return s.frame(&message.Task{Kind: typ, Raw: payload})
}

// HandleOutgoingApplication frames an application message for the peer.
func (s *Signaling) HandleOutgoingApplication(data []byte) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.frame(&message.Application{Data: data})
}

// Close ends the session. In the task phase it returns a close message for
// the peer, otherwise nil.
func (s *Signaling) Close(code domain.CloseCode) ([]byte, error) {
	if s.closed {
		return nil, nil
	}
	defer func() { s.closed = true }()
	if !s.machine.At(state.Task) {
		return nil, nil
	}
	s.task.Close(code)
	return s.frame(&message.Close{Reason: int(code)})
}

func (s *Signaling) ready() error {
	if s.closed {
		return &StateError{Kind: KindClosed, State: s.State()}
	}
	if !s.machine.At(state.Task) {
		return &StateError{Kind: KindNotReady, State: s.State()}
	}
	return nil
}

func (s *Signaling) frame(m message.Message) ([]byte, error) {
	res := new(Result)
	if err := s.send(res, []handshake.Outgoing{{Destination: s.peer, Message: m, Key: s.sessionKey}}); err != nil {
		return nil, err
	}
	return res.Outgoing[0], nil
}

func (s *Signaling) send(res *Result, out []handshake.Outgoing) error {
	for _, o := range out {
		n, err := s.tracker.NextOutgoing(s.address, o.Destination)
		if err != nil {
			return err
		}
		var frame []byte
		if o.Key == nil {
			frame, err = s.codec.EncodePlain(n, o.Message)
		} else {
			frame, err = s.codec.Encode(n, o.Message, o.Key)
		}
		if err != nil {
			return err
		}
		instrument.MessageSent(o.Message.MessageType())
		s.log.Debugf("-> %s to %s", o.Message.MessageType(), o.Destination)
		res.Outgoing = append(res.Outgoing, frame)
	}
	return nil
}

func (s *Signaling) transition(res *Result, to state.SignalingState) error {
	if err := s.machine.Advance(to); err != nil {
		return err
	}
	instrument.StateTransition(to.String())
	res.Transition = &to
	return nil
}

func (s *Signaling) abort(err error) error {
	if !s.closed {
		s.closed = true
		s.machine.Fail(err.Error())
		s.log.Errorf("Signaling failed: %v", err)
		if s.task != nil {
			s.task.Close(CloseCodeFor(err))
		}
	}
	return err
}
