package session

import (
	"errors"
	"fmt"
	"strings"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/log"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
	"saltyrtc/internal/relay"
	"saltyrtc/internal/signaling"
)

// ErrNotTrusted is returned when a responder has neither an auth token nor
// a trusted initiator key.
var ErrNotTrusted = errors.New("session: no auth token and the initiator is not trusted")

// Options selects what kind of session to start.
type Options struct {
	Passphrase string
	Role       domain.Role
	// Path is the initiator's hex public key, responder only.
	Path string
	// AuthToken is the hex token from the initiator, responder only.
	AuthToken string
	// Pair makes the initiator ignore trusted responders and issue a token.
	Pair         bool
	PingInterval uint32
	Tasks        []task.Task
	// OnState is passed on to the relay client.
	OnState func(state.SignalingState)
}

// Session is a prepared, not yet connected, signaling session.
type Session struct {
	Signaling *signaling.Signaling
	Client    *relay.Client
	Permanent *crypto.KeyPair
	// AuthToken is the token to hand to the responder, nil when the
	// initiator reconnects to a trusted responder.
	AuthToken *crypto.AuthToken
	// Trusted is the peer we identify by key, if any.
	Trusted *domain.TrustedPeer
}

// Close wipes the secrets held by the session.
func (s *Session) Close() {
	s.AuthToken.Wipe()
	s.Permanent.Wipe()
}

// Service builds sessions from the stores and the relay settings.
type Service struct {
	ids       domain.IdentityStore
	trust     domain.TrustStore
	relay     relay.Config
	serverKey *crypto.PublicKey
	logs      *log.Backend
}

// New returns a session service.
func New(ids domain.IdentityStore, ts domain.TrustStore, rc relay.Config, serverKey *crypto.PublicKey, logs *log.Backend) *Service {
	return &Service{ids: ids, trust: ts, relay: rc, serverKey: serverKey, logs: logs}
}

// Start loads the identity and prepares a session for opts.
func (s *Service) Start(opts Options) (*Session, error) {
	kp, err := s.ids.LoadIdentity(opts.Passphrase)
	if err != nil {
		return nil, err
	}
	sess := &Session{Permanent: kp}
	cfg := signaling.Config{
		Role:         opts.Role,
		Permanent:    kp,
		ServerKey:    s.serverKey,
		Tasks:        opts.Tasks,
		PingInterval: opts.PingInterval,
		Logger:       s.logs.GetLogger("signaling"),
		TrustStore:   s.trust,
	}

	switch opts.Role {
	case domain.Initiator:
		err = s.initiator(sess, &cfg, opts)
	case domain.Responder:
		err = s.responder(sess, &cfg, opts)
	default:
		err = fmt.Errorf("session: invalid role %v", opts.Role)
	}
	if err != nil {
		sess.Close()
		return nil, err
	}

	if sess.Signaling, err = signaling.New(cfg); err != nil {
		sess.Close()
		return nil, err
	}
	rc := s.relay
	rc.OnState = opts.OnState
	if sess.Client, err = relay.New(rc, sess.Signaling, s.logs.GetLogger("relay")); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (s *Service) initiator(sess *Session, cfg *signaling.Config, opts Options) error {
	if !opts.Pair {
		peer, ok, err := s.trust.Latest(sess.Permanent.PublicKey(), domain.Responder)
		if err != nil {
			return err
		}
		if ok {
			key := crypto.PublicKey(peer.PublicKey)
			cfg.TrustedResponderKey = &key
			sess.Trusted = &peer
			return nil
		}
	}
	token, err := crypto.NewAuthToken()
	if err != nil {
		return err
	}
	cfg.AuthToken = token
	sess.AuthToken = token
	return nil
}

func (s *Service) responder(sess *Session, cfg *signaling.Config, opts Options) error {
	path, err := crypto.PublicKeyFromHex(strings.ToLower(strings.TrimSpace(opts.Path)))
	if err != nil {
		return fmt.Errorf("session: path: %w", err)
	}
	cfg.InitiatorKey = &path

	if opts.AuthToken != "" {
		token, err := crypto.AuthTokenFromHex(strings.ToLower(strings.TrimSpace(opts.AuthToken)))
		if err != nil {
			return fmt.Errorf("session: auth token: %w", err)
		}
		cfg.AuthToken = token
		sess.AuthToken = token
	}

	peer, ok, err := s.trust.Lookup(sess.Permanent.PublicKey(), path)
	if err != nil {
		return err
	}
	if ok {
		sess.Trusted = &peer
	} else if cfg.AuthToken == nil {
		return ErrNotTrusted
	}
	return nil
}
