// Package tunnel reaches upload targets through an SSH gateway.
//
// A Tunnel holds one SSH client connection; its Dial method has the shape
// http.WithDialer expects, so every upload connection is opened as a
// direct-tcpip channel from the gateway.
package tunnel

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/logger"
)

const (
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second
)

// Config holds everything needed to dial an SSH gateway.
type Config struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	UseAgent      bool
	PromptPass    bool
	StrictHostKey bool
	KnownHosts    string
	Timeout       time.Duration
}

// ParseTarget reads "[user@]host[:port]". The user defaults to $USER.
func ParseTarget(s string) (*Config, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty ssh target")
	}

	cfg := &Config{Port: DefaultPort}
	if user, rest, ok := strings.Cut(s, "@"); ok {
		cfg.User = user
		s = rest
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// No port given.
		host = strings.Trim(s, "[]")
	} else {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid ssh port %q", port)
		}
		cfg.Port = p
	}
	if host == "" {
		return nil, fmt.Errorf("ssh target %q has no host", s)
	}
	cfg.Host = host
	return cfg, nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Tunnel forwards connections through an SSH client.
type Tunnel struct {
	config *Config
	log    zerolog.Logger

	mu     sync.RWMutex
	client *ssh.Client
}

// New creates a tunnel that is ready to Connect.
func New(cfg *Config, log zerolog.Logger) *Tunnel {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Tunnel{config: cfg, log: logger.WithComponent(log, "tunnel")}
}

// Connect dials the gateway and completes the SSH handshake.
func (t *Tunnel) Connect(ctx context.Context) error {
	addr := t.config.Addr()

	methods, err := BuildAuthMethods(t.config)
	if err != nil {
		return uerrors.Wrap("ssh auth", addr, err)
	}
	hostKey, err := hostKeyCallback(t.config)
	if err != nil {
		return uerrors.Wrap("ssh hostkey", addr, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         t.config.Timeout,
	}

	t.log.Debug().Str("gateway", addr).Str("user", t.config.User).Msg("dialing ssh gateway")

	dialer := net.Dialer{Timeout: t.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return uerrors.Wrap("ssh dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close()
		return uerrors.Wrap("ssh handshake", addr, err)
	}

	t.mu.Lock()
	t.client = ssh.NewClient(sshConn, chans, reqs)
	t.mu.Unlock()
	return nil
}

// Dial opens a connection to address from the gateway.
func (t *Tunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("ssh tunnel to %s is not connected", t.config.Addr())
	}

	t.log.Debug().Str("network", network).Str("address", address).Msg("tunnel dial")
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("tunnel dial %s: %w", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
