package signaling_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/log"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/nonce"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
	"saltyrtc/internal/signaling"
	"saltyrtc/internal/store"
)

type stubTask struct {
	name     string
	data     []byte
	peerData []byte
	started  bool
	received []string
	closed   *domain.CloseCode
}

func (s *stubTask) Name() string             { return s.name }
func (s *stubTask) SupportedTypes() []string { return []string{"stub"} }
func (s *stubTask) Data() []byte             { return s.data }
func (s *stubTask) Start(task.Sender)        { s.started = true }

func (s *stubTask) Init(peer []byte) error {
	s.peerData = peer
	return nil
}

func (s *stubTask) OnMessage(typ string, _ []byte) error {
	s.received = append(s.received, typ)
	return nil
}

func (s *stubTask) Close(code domain.CloseCode) { s.closed = &code }

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	b, err := log.NewWithWriter(io.Discard, "DEBUG")
	require.NoError(t, err)
	return b.GetLogger(t.Name())
}

func openTrust(t *testing.T) *store.TrustDB {
	t.Helper()
	db, err := store.OpenTrustDB(filepath.Join(t.TempDir(), "trust.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// client is one signaling session attached to the fake relay.
type client struct {
	sig  *signaling.Signaling
	perm *crypto.KeyPair
	task *stubTask

	addr   domain.Address
	cookie nonce.Cookie
	// theirs is the cookie the client uses towards the server.
	theirs nonce.Cookie
	seq    uint32
	authed bool

	transitions []state.SignalingState
	closed      *domain.CloseCode
	err         error
	dropped     *domain.CloseCode
}

type delivery struct {
	to    *client
	frame []byte
}

// fakeRelay plays the SaltyRTC server for one path. It relays peer frames
// unchanged and answers server messages itself.
type fakeRelay struct {
	t         *testing.T
	permanent *crypto.KeyPair
	session   *crypto.KeyPair

	initiator  *client
	responders map[domain.Address]*client
	next       domain.Address
	queue      []delivery
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	perm, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	sess, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return &fakeRelay{
		t:          t,
		permanent:  perm,
		session:    sess,
		responders: make(map[domain.Address]*client),
		next:       0x02,
	}
}

func (r *fakeRelay) serverKey() *crypto.PublicKey {
	pk := r.permanent.PublicKey()
	return &pk
}

func (r *fakeRelay) nonceFor(c *client) nonce.Nonce {
	c.seq++
	return nonce.Nonce{Cookie: c.cookie, Source: domain.ServerAddress, Destination: c.addr, Sequence: c.seq}
}

func (r *fakeRelay) push(c *client, n nonce.Nonce, m message.Message, encrypt bool) {
	r.t.Helper()
	payload, err := message.Encode(m)
	require.NoError(r.t, err)
	nb := n.Bytes()
	if encrypt {
		payload = r.session.SharedKey(c.perm.PublicKey()).Seal(payload, &nb)
	}
	r.queue = append(r.queue, delivery{to: c, frame: append(nb[:], payload...)})
}

// connect attaches c and sends server-hello.
func (r *fakeRelay) connect(c *client) {
	r.t.Helper()
	cookie, err := nonce.NewCookie()
	require.NoError(r.t, err)
	c.cookie = cookie
	c.seq = 0
	spk := r.session.PublicKey()
	r.push(c, r.nonceFor(c), &message.ServerHello{Key: spk.Slice()}, false)
}

// run delivers queued frames until the path is quiet.
func (r *fakeRelay) run() {
	r.t.Helper()
	for len(r.queue) > 0 {
		d := r.queue[0]
		r.queue = r.queue[1:]
		if d.to.err != nil || d.to.closed != nil || d.to.dropped != nil {
			continue
		}
		res, err := d.to.sig.HandleIncoming(d.frame)
		if res.Transition != nil {
			d.to.transitions = append(d.to.transitions, *res.Transition)
		}
		if res.Closed != nil {
			d.to.closed = res.Closed
		}
		for _, f := range res.Outgoing {
			r.route(d.to, f)
		}
		if err != nil {
			d.to.err = err
		}
	}
}

func (r *fakeRelay) route(from *client, frame []byte) {
	r.t.Helper()
	n, err := nonce.Parse(frame[:nonce.Size])
	require.NoError(r.t, err)
	if n.Destination != domain.ServerAddress {
		to := r.lookup(n.Destination)
		if to == nil || !to.authed {
			id := make([]byte, 8)
			id[0], id[1] = byte(n.Source), byte(n.Destination)
			r.push(from, r.nonceFor(from), &message.SendError{ID: id}, true)
			return
		}
		r.queue = append(r.queue, delivery{to: to, frame: frame})
		return
	}

	from.theirs = n.Cookie
	nb := n.Bytes()
	payload := frame[nonce.Size:]
	if peekType(payload) == "" {
		payload, err = r.session.SharedKey(from.perm.PublicKey()).Open(payload, &nb)
		require.NoError(r.t, err)
	}
	m, err := message.Decode(payload, func(string) bool { return false })
	require.NoError(r.t, err)

	switch m := m.(type) {
	case *message.ClientHello:
	case *message.ClientAuth:
		r.authenticate(from, m)
	case *message.DropResponder:
		id := domain.Address(m.ID)
		if c := r.responders[id]; c != nil {
			code := domain.CloseCode(m.Reason)
			c.dropped = &code
			delete(r.responders, id)
		}
	default:
		r.t.Fatalf("relay got unexpected %s", m.MessageType())
	}
}

// peekType reports the type tag of a plaintext payload, "" if it is boxed.
func peekType(payload []byte) string {
	typ, err := message.PeekType(payload)
	if err != nil {
		return ""
	}
	return typ
}

func (r *fakeRelay) lookup(addr domain.Address) *client {
	if addr.IsInitiator() {
		return r.initiator
	}
	return r.responders[addr]
}

func (r *fakeRelay) authenticate(c *client, m *message.ClientAuth) {
	r.t.Helper()
	require.Equal(r.t, c.cookie[:], m.YourCookie)
	require.Equal(r.t, []string{message.Subprotocol}, m.Subprotocols)

	reply := &message.ServerAuth{YourCookie: append([]byte(nil), c.theirs[:]...)}
	if c.sig.Role() == domain.Initiator {
		c.addr = domain.InitiatorAddress
		r.initiator = c
		for id := range r.responders {
			reply.Responders = append(reply.Responders, int(id))
		}
	} else {
		c.addr = r.next
		r.next++
		r.responders[c.addr] = c
		connected := r.initiator != nil
		reply.InitiatorConnected = &connected
	}
	c.authed = true

	n := r.nonceFor(c)
	nb := n.Bytes()
	spk := r.session.PublicKey()
	cpk := c.perm.PublicKey()
	reply.SignedKeys = crypto.SealTo(append(spk.Slice(), cpk.Slice()...), &nb, cpk, r.permanent)
	r.push(c, n, reply, true)

	if c.sig.Role() == domain.Initiator {
		for _, resp := range r.responders {
			r.push(resp, r.nonceFor(resp), &message.NewInitiator{}, true)
		}
	} else if r.initiator != nil {
		r.push(r.initiator, r.nonceFor(r.initiator), &message.NewResponder{ID: int(c.addr)}, true)
	}
}

// disconnect tells the remaining clients that addr left.
func (r *fakeRelay) disconnect(addr domain.Address) {
	r.t.Helper()
	for _, c := range r.all() {
		if c.addr != addr {
			r.push(c, r.nonceFor(c), &message.Disconnected{ID: int(addr)}, true)
		}
	}
	if addr.IsInitiator() {
		r.initiator = nil
	} else {
		delete(r.responders, addr)
	}
}

func (r *fakeRelay) all() []*client {
	var out []*client
	if r.initiator != nil {
		out = append(out, r.initiator)
	}
	for _, c := range r.responders {
		out = append(out, c)
	}
	return out
}
