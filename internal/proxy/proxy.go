// Package proxy implements support for an upstream SOCKS5 proxy for the
// relay connection.
package proxy

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

const (
	TypeNone   = "none"
	TypeSocks5 = "socks5"

	netTCP  = "tcp"
	netUnix = "unix"

	maxSocks5AuthLen = 255
)

// DialContextFn matches net.Dialer.DialContext.
type DialContextFn func(ctx context.Context, network, address string) (net.Conn, error)

// Config is the upstream proxy configuration.
type Config struct {
	// Type is "none" or "socks5".
	Type string
	// Network is the proxy address network, "tcp" or "unix".
	Network string
	// Address is the proxy address.
	Address string
	// User and Password are optional SOCKS5 credentials. Both or neither
	// must be set.
	User     string
	Password string
}

// FixupAndValidate applies defaults and checks the configuration.
func (c *Config) FixupAndValidate() error {
	c.Type = strings.ToLower(c.Type)
	switch c.Type {
	case "":
		c.Type = TypeNone
		return nil
	case TypeNone:
		return nil
	case TypeSocks5:
	default:
		return fmt.Errorf("proxy: Type %q is invalid", c.Type)
	}

	uLen, pLen := len(c.User), len(c.Password)
	if uLen > maxSocks5AuthLen || pLen > maxSocks5AuthLen {
		return fmt.Errorf("proxy: credentials longer than %d bytes", maxSocks5AuthLen)
	}
	if (uLen == 0) != (pLen == 0) {
		return fmt.Errorf("proxy: both User and Password must be specified")
	}

	c.Network = strings.ToLower(c.Network)
	switch c.Network {
	case "", netTCP:
		c.Network = netTCP
		host, port, err := net.SplitHostPort(c.Address)
		if err != nil {
			return fmt.Errorf("proxy: Address %q is invalid: %w", c.Address, err)
		}
		if net.ParseIP(host) == nil {
			return fmt.Errorf("proxy: Address %q is not an IP address", c.Address)
		}
		if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
			return fmt.Errorf("proxy: Address %q has an invalid port", c.Address)
		}
	case netUnix:
		fi, err := os.Lstat(c.Address)
		if err != nil {
			return fmt.Errorf("proxy: Address %q: %w", c.Address, err)
		}
		if fi.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("proxy: Address %q is not a socket", c.Address)
		}
	default:
		return fmt.Errorf("proxy: Network %q is invalid", c.Network)
	}
	return nil
}

// DialContext returns a dial function going through the proxy, or nil when
// no proxy is configured.
func (c *Config) DialContext() (DialContextFn, error) {
	if c == nil || c.Type == "" || c.Type == TypeNone {
		return nil, nil
	}
	var auth *proxy.Auth
	if c.User != "" {
		auth = &proxy.Auth{User: c.User, Password: c.Password}
	}
	d, err := proxy.SOCKS5(c.Network, c.Address, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy: SOCKS5 dialer does not support contexts")
	}
	return cd.DialContext, nil
}
