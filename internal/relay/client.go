package relay

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/op/go-logging.v1"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/instrument"
	"saltyrtc/internal/protocol/message"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/proxy"
	"saltyrtc/internal/signaling"
)

const (
	defaultQueueSize        = 64
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

// Config configures the connection to the server.
type Config struct {
	// URL is the server base URL; the path is appended to it.
	URL string
	// CAFile is an optional PEM bundle trusted in addition to the system
	// roots.
	CAFile string
	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration
	// PingTimeout is how long to wait for a pong. Zero means twice the
	// session's ping interval.
	PingTimeout time.Duration
	// DialContext replaces the direct TCP dialer, e.g. with a SOCKS5 proxy.
	DialContext proxy.DialContextFn
	// QueueSize bounds the outgoing queue.
	QueueSize int
	// OnState, when set, is called from Run on every signaling transition.
	OnState func(state.SignalingState)
}

type workerOp interface{}

type opTask struct {
	payload []byte
}

type opApplication struct {
	data []byte
}

type opClose struct {
	code domain.CloseCode
}

// Client runs one signaling session over a WebSocket.
type Client struct {
	cfg    Config
	sig    *signaling.Signaling
	log    *logging.Logger
	dialer *websocket.Dialer

	opCh      chan workerOp
	haltCh    chan struct{}
	closeOnce sync.Once
}

// New prepares a client for sig. It does not connect.
func New(cfg Config, sig *signaling.Signaling, log *logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("relay: no server URL")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 2 * time.Duration(sig.PingInterval()) * time.Second
	}
	tlsConf, err := tlsConfig(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		sig: sig,
		log: log,
		dialer: &websocket.Dialer{
			NetDialContext:   cfg.DialContext,
			TLSClientConfig:  tlsConf,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{message.Subprotocol},
		},
		opCh:   make(chan workerOp, cfg.QueueSize),
		haltCh: make(chan struct{}),
	}, nil
}

func tlsConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("relay: reading CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("relay: no certificates in %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// URL is the full WebSocket URL for the session's path.
func (c *Client) URL() string {
	return strings.TrimSuffix(c.cfg.URL, "/") + "/" + c.sig.Path()
}

// Send queues a task message. It implements task.Sender.
func (c *Client) Send(payload []byte) error {
	return c.enqueue(opTask{payload: payload})
}

// SendApplication queues an application message.
func (c *Client) SendApplication(data []byte) error {
	return c.enqueue(opApplication{data: data})
}

// Close asks Run to end the session with code.
func (c *Client) Close(code domain.CloseCode) error {
	return c.enqueue(opClose{code: code})
}

func (c *Client) enqueue(op workerOp) error {
	select {
	case <-c.haltCh:
		return ErrStopped
	default:
	}
	select {
	case c.opCh <- op:
		return nil
	case <-c.haltCh:
		return ErrStopped
	default:
		instrument.QueueRejected()
		return ErrQueueFull
	}
}

// Run connects and drives the session until it ends. It returns nil after a
// normal close by either side or when ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer c.closeOnce.Do(func() { close(c.haltCh) })

	url := c.URL()
	c.log.Noticef("Connecting to %s", strings.TrimSuffix(c.cfg.URL, "/"))
	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("relay: dial: %w (HTTP %s)", err, resp.Status)
		}
		return fmt.Errorf("relay: dial: %w", err)
	}
	defer conn.Close()

	if conn.Subprotocol() != message.Subprotocol {
		c.closeConn(conn, domain.CloseNoSharedSubprotocol)
		return ErrSubprotocol
	}
	c.log.Debugf("Connected, subprotocol %s", conn.Subprotocol())
	return c.worker(ctx, conn)
}

type readResult struct {
	frame []byte
	err   error
}

func (c *Client) reader(conn *websocket.Conn, readCh chan<- readResult, pongCh chan<- struct{}) {
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})
	for {
		typ, frame, err := conn.ReadMessage()
		if err == nil && typ != websocket.BinaryMessage {
			err = fmt.Errorf("relay: unexpected WebSocket message type %d", typ)
		}
		select {
		case readCh <- readResult{frame: frame, err: err}:
		case <-c.haltCh:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) worker(ctx context.Context, conn *websocket.Conn) error {
	readCh := make(chan readResult)
	pongCh := make(chan struct{}, 1)
	go c.reader(conn, readCh, pongCh)

	var (
		pingC    <-chan time.Time
		pongWait *time.Timer
		pongC    <-chan time.Time
	)
	if iv := c.sig.PingInterval(); iv > 0 {
		ticker := time.NewTicker(time.Duration(iv) * time.Second)
		defer ticker.Stop()
		pingC = ticker.C
	}
	defer func() {
		if pongWait != nil {
			pongWait.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Context cancelled, closing")
			return c.shutdown(conn, domain.CloseGoingAway)

		case r := <-readCh:
			if r.err != nil {
				return c.readError(r.err)
			}
			done, err := c.onFrame(conn, r.frame)
			if err != nil || done {
				return err
			}

		case op := <-c.opCh:
			done, err := c.onOp(conn, op)
			if err != nil || done {
				return err
			}

		case <-pingC:
			if pongC != nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return fmt.Errorf("relay: ping: %w", err)
			}
			instrument.PingSent()
			if pongWait == nil {
				pongWait = time.NewTimer(c.cfg.PingTimeout)
			} else {
				pongWait.Reset(c.cfg.PingTimeout)
			}
			pongC = pongWait.C

		case <-pongCh:
			if pongWait != nil {
				pongWait.Stop()
			}
			pongC = nil

		case <-pongC:
			instrument.PongTimeout()
			c.log.Warning("No pong from the server")
			c.abort(conn, domain.CloseTimeout)
			return ErrPongTimeout
		}
	}
}

// onFrame feeds one incoming frame to the session.
func (c *Client) onFrame(conn *websocket.Conn, frame []byte) (bool, error) {
	res, err := c.sig.HandleIncoming(frame)
	for _, out := range res.Outgoing {
		if werr := c.write(conn, out); werr != nil {
			return true, werr
		}
	}
	if err != nil {
		c.abort(conn, signaling.CloseCodeFor(err))
		return true, err
	}
	if res.Transition != nil {
		c.log.Infof("Signaling state %s", *res.Transition)
		if c.cfg.OnState != nil {
			c.cfg.OnState(*res.Transition)
		}
		if *res.Transition == state.Task {
			c.sig.Task().Start(c)
		}
	}
	if res.Closed != nil {
		c.closeConn(conn, domain.CloseNormal)
		return true, nil
	}
	return false, nil
}

func (c *Client) onOp(conn *websocket.Conn, op workerOp) (bool, error) {
	var (
		frame []byte
		err   error
	)
	switch op := op.(type) {
	case opTask:
		frame, err = c.sig.HandleOutgoingTaskMessage(op.payload)
	case opApplication:
		frame, err = c.sig.HandleOutgoingApplication(op.data)
	case opClose:
		return true, c.shutdown(conn, op.code)
	default:
		c.log.Warningf("BUG: worker received nonsensical op: %T", op)
		return false, nil
	}
	if err != nil {
		// A rejected message does not end the session.
		c.log.Warningf("Dropping outgoing message: %v", err)
		return false, nil
	}
	return false, c.write(conn, frame)
}

// shutdown sends a close message to the peer, if any, and closes the
// connection with code.
func (c *Client) shutdown(conn *websocket.Conn, code domain.CloseCode) error {
	frame, err := c.sig.Close(code)
	if err != nil {
		c.log.Warningf("Closing session: %v", err)
	}
	if frame != nil {
		if err := c.write(conn, frame); err != nil {
			return err
		}
	}
	c.closeConn(conn, code)
	return nil
}

func (c *Client) abort(conn *websocket.Conn, code domain.CloseCode) {
	if _, err := c.sig.Close(code); err != nil {
		c.log.Debugf("Closing session: %v", err)
	}
	c.closeConn(conn, code)
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("relay: write: %w", err)
	}
	return nil
}

func (c *Client) closeConn(conn *websocket.Conn, code domain.CloseCode) {
	msg := websocket.FormatCloseMessage(int(code), "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil {
		c.log.Debugf("Writing close frame: %v", err)
	}
}

func (c *Client) readError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code := domain.CloseCode(ce.Code)
		if code == domain.CloseNormal || code == domain.CloseGoingAway {
			c.log.Noticef("Server closed the connection: %s", code)
			return nil
		}
		return &ClosedError{Code: code, Text: ce.Text}
	}
	return fmt.Errorf("relay: read: %w", err)
}
