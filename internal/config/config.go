// Package config loads the TOML client configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"saltyrtc/internal/crypto"
	"saltyrtc/internal/proxy"
)

const (
	defaultLogLevel         = "NOTICE"
	defaultServerURL        = "wss://localhost:8765"
	defaultPingInterval     = 30
	defaultHandshakeTimeout = 10
	defaultHomeDir          = ".saltychat"
)

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool
	// File is the log file, stderr when empty.
	File string
	// Level is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
	Level string
}

func (l *Logging) validate() error {
	lvl := strings.ToUpper(l.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level %q is invalid", l.Level)
	}
	l.Level = lvl
	return nil
}

// Server describes the signaling relay.
type Server struct {
	// URL is the WebSocket base URL; the path is appended to it.
	URL string
	// PublicKey is the relay's hex encoded permanent key. When set the
	// server handshake verifies signed_keys.
	PublicKey string
	// CAFile is an optional PEM bundle trusted for the relay's TLS
	// certificate in addition to the system roots.
	CAFile string
	// HandshakeTimeout bounds the WebSocket opening handshake, in seconds.
	HandshakeTimeout int

	serverKey *crypto.PublicKey
}

// Key returns the parsed server key, nil when none is configured.
func (s *Server) Key() *crypto.PublicKey { return s.serverKey }

func (s *Server) fixupAndValidate() error {
	if s.URL == "" {
		s.URL = defaultServerURL
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("config: Server: URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("config: Server: URL scheme %q is not ws or wss", u.Scheme)
	}
	if s.PublicKey != "" {
		pk, err := crypto.PublicKeyFromHex(s.PublicKey)
		if err != nil {
			return fmt.Errorf("config: Server: PublicKey: %w", err)
		}
		s.serverKey = &pk
	}
	if s.CAFile != "" {
		if _, err := os.Stat(s.CAFile); err != nil {
			return fmt.Errorf("config: Server: CAFile: %w", err)
		}
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = defaultHandshakeTimeout
	}
	if s.HandshakeTimeout < 0 {
		return errors.New("config: Server: HandshakeTimeout is negative")
	}
	return nil
}

// Client holds the local client settings.
type Client struct {
	// DataDir holds the identity and the trust database.
	DataDir string
	// PingInterval is the WebSocket keep-alive interval in seconds, 0
	// disables pings.
	PingInterval int
	// PingTimeout is how long to wait for a pong, in seconds. It defaults
	// to twice the ping interval.
	PingTimeout int
	// Nickname is announced to the peer by the chat task.
	Nickname string
}

func (c *Client) fixupAndValidate(pingSet bool) error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: Client: no DataDir and no home: %w", err)
		}
		c.DataDir = filepath.Join(home, defaultHomeDir)
	}
	if !pingSet {
		c.PingInterval = defaultPingInterval
	}
	if c.PingInterval < 0 || int64(c.PingInterval) > math.MaxUint32 {
		return fmt.Errorf("config: Client: PingInterval %d is out of range", c.PingInterval)
	}
	if c.PingTimeout < 0 {
		return errors.New("config: Client: PingTimeout is negative")
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 2 * c.PingInterval
	}
	return nil
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Address is the listen address, empty disables the endpoint.
	Address string
}

func (m *Metrics) validate() error {
	if m.Address == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Address); err != nil {
		return fmt.Errorf("config: Metrics: Address %q: %w", m.Address, err)
	}
	return nil
}

// Config is the top level client configuration.
type Config struct {
	Server        *Server
	Client        *Client
	Logging       *Logging
	UpstreamProxy *proxy.Config
	Metrics       *Metrics

	pingSet bool
}

// Default returns a validated configuration without a file.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FixupAndValidate applies defaults to missing entries and validates every
// section.
func (c *Config) FixupAndValidate() error {
	if c.Server == nil {
		c.Server = new(Server)
	}
	if c.Client == nil {
		c.Client = new(Client)
	}
	if c.Logging == nil {
		c.Logging = new(Logging)
	}
	if c.UpstreamProxy == nil {
		c.UpstreamProxy = new(proxy.Config)
	}
	if c.Metrics == nil {
		c.Metrics = new(Metrics)
	}

	if err := c.Server.fixupAndValidate(); err != nil {
		return err
	}
	if err := c.Client.fixupAndValidate(c.pingSet); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.UpstreamProxy.FixupAndValidate(); err != nil {
		return fmt.Errorf("config: UpstreamProxy: %w", err)
	}
	return c.Metrics.validate()
}

// OverridePingInterval replaces the configured keep-alive interval, e.g.
// from a command line flag. The pong timeout follows it.
func (c *Config) OverridePingInterval(seconds int) error {
	if seconds < 0 || int64(seconds) > math.MaxUint32 {
		return fmt.Errorf("config: ping interval %d is out of range", seconds)
	}
	c.pingSet = true
	c.Client.PingInterval = seconds
	c.Client.PingTimeout = 2 * seconds
	return nil
}

// Load parses and validates b as a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: unknown keys %v", undecoded)
	}
	// An explicit PingInterval = 0 disables pings, so only a missing key
	// takes the default.
	cfg.pingSet = md.IsDefined("Client", "PingInterval")
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the file f.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
