// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package remote connects to the hosts where missions deposit their batches
// and exposes them through a small listing and retrieval contract.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// ErrTransport wraps every connection, listing or retrieval failure.
var ErrTransport = errors.New("remote transport error")

// Protocol selects how remote hosts are reached.
type Protocol string

const (
	ProtocolFTP Protocol = "ftp"
	ProtocolSSH Protocol = "ssh"
)

const (
	DefaultDebugHost = "localhost"
	DefaultTimeout   = 30 * time.Second
)

// Config holds settings shared by all remote sessions.
type Config struct {
	Protocol       Protocol      `mapstructure:"protocol"`
	Debug          bool          `mapstructure:"debug"`
	DebugHost      string        `mapstructure:"debug_host"`
	Timeout        time.Duration `mapstructure:"timeout"`
	KnownHostsFile string        `mapstructure:"known_hosts_file"`
}

func DefaultConfig() Config {
	return Config{
		Protocol:  ProtocolFTP,
		DebugHost: DefaultDebugHost,
		Timeout:   DefaultTimeout,
	}
}

// Endpoint is where a mission's data lives and how to log in.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Session is an open connection to a remote host. Sessions are not safe for
// concurrent use.
type Session interface {
	// List returns the entries directly under dir, each with its type.
	List(ctx context.Context, dir string) ([]Entry, error)
	// Retrieve copies the file at path into w.
	Retrieve(ctx context.Context, path string, w io.Writer) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, ep Endpoint) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, ep Endpoint) (Session, error) {
	return f(ctx, ep)
}

// NewDialer returns the dialer for cfg.Protocol. In debug mode every
// endpoint's host is replaced with cfg.DebugHost.
func NewDialer(cfg Config) (Dialer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DebugHost == "" {
		cfg.DebugHost = DefaultDebugHost
	}

	var d DialerFunc
	switch cfg.Protocol {
	case ProtocolFTP, "":
		d = func(ctx context.Context, ep Endpoint) (Session, error) {
			return DialFTP(ctx, ep, cfg.Timeout)
		}
	case ProtocolSSH:
		hostKeys, err := hostKeyCallback(cfg.KnownHostsFile, slog.Default())
		if err != nil {
			return nil, err
		}
		d = func(ctx context.Context, ep Endpoint) (Session, error) {
			return DialSSH(ctx, ep, cfg.Timeout, hostKeys)
		}
	default:
		return nil, fmt.Errorf("unsupported remote protocol: %s", cfg.Protocol)
	}

	if !cfg.Debug {
		return d, nil
	}
	return overrideHost(d, cfg.DebugHost), nil
}

func overrideHost(d Dialer, host string) DialerFunc {
	return func(ctx context.Context, ep Endpoint) (Session, error) {
		ep.Host = host
		return d.Dial(ctx, ep)
	}
}

func transportErr(op, target string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrTransport, op, target, err)
}
