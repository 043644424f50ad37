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

package remote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHSession reaches a host over SSH and reads it with ls and cat. Listings
// come back in long format and go through ParseListing.
type SSHSession struct {
	client *ssh.Client
	addr   string
}

var _ Session = (*SSHSession)(nil)

// hostKeyCallback verifies host keys against knownHostsFile. Without one,
// any key is accepted and a warning is logged.
func hostKeyCallback(knownHostsFile string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		logger.Warn("SSH host keys are not verified; set remote.known_hosts_file to enable checking")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", knownHostsFile, err)
	}
	return cb, nil
}

// DialSSH connects to ep with password authentication.
func DialSSH(ctx context.Context, ep Endpoint, timeout time.Duration, hostKeys ssh.HostKeyCallback) (*SSHSession, error) {
	addr := ep.Addr()
	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            []ssh.AuthMethod{ssh.Password(ep.Password)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, transportErr("dial", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, transportErr("handshake", addr, err)
	}
	return &SSHSession{client: ssh.NewClient(sshConn, chans, reqs), addr: addr}, nil
}

func (s *SSHSession) List(ctx context.Context, dir string) ([]Entry, error) {
	var out bytes.Buffer
	if err := s.run(ctx, "LC_ALL=C ls -l -- "+shellQuote(dir), &out); err != nil {
		return nil, transportErr("list", dir, err)
	}
	var lines []string
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, transportErr("list", dir, err)
	}
	return ParseListing(lines), nil
}

func (s *SSHSession) Retrieve(ctx context.Context, path string, w io.Writer) error {
	if err := s.run(ctx, "cat -- "+shellQuote(path), w); err != nil {
		return transportErr("retrieve", path, err)
	}
	return nil
}

func (s *SSHSession) Close() error {
	if err := s.client.Close(); err != nil {
		return transportErr("close", s.addr, err)
	}
	return nil
}

// run executes cmd in a fresh channel, streaming stdout into w. The channel
// is torn down if ctx ends first.
func (s *SSHSession) run(ctx context.Context, cmd string, w io.Writer) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	var stderr bytes.Buffer
	sess.Stdout = w
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return ctx.Err()
	case err := <-done:
		if err != nil && stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return err
	}
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
