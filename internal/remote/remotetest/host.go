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

// Package remotetest provides an in-memory remote host for tests.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/cardinalhq/satready/internal/remote"
)

// Host is an in-memory directory tree reachable through Dialer. Directories
// are created implicitly by AddFile and AddDir.
type Host struct {
	mu        sync.Mutex
	dirs      map[string]map[string]remote.EntryType
	files     map[string][]byte
	listFails map[string]error
	dialErr   error
	dials     []remote.Endpoint
	open      int
	closed    int
}

func NewHost() *Host {
	return &Host{
		dirs:      map[string]map[string]remote.EntryType{"/": {}},
		files:     map[string][]byte{},
		listFails: map[string]error{},
	}
}

// AddDir creates dir and its parents.
func (h *Host) AddDir(dir string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mkdirAll(path.Clean(dir))
}

// AddFile creates a file with content, creating parent directories.
func (h *Host) AddFile(p string, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p = path.Clean(p)
	parent := path.Dir(p)
	h.mkdirAll(parent)
	h.dirs[parent][path.Base(p)] = remote.EntryFile
	h.files[p] = []byte(content)
}

// FailList makes listing dir fail with err.
func (h *Host) FailList(dir string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listFails[path.Clean(dir)] = err
}

// FailDial makes every dial fail with err.
func (h *Host) FailDial(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dialErr = err
}

// Dials returns the endpoints dialled so far.
func (h *Host) Dials() []remote.Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]remote.Endpoint(nil), h.dials...)
}

// OpenSessions is the number of sessions dialled and not yet closed.
func (h *Host) OpenSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open - h.closed
}

func (h *Host) Dialer() remote.Dialer {
	return remote.DialerFunc(func(_ context.Context, ep remote.Endpoint) (remote.Session, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.dials = append(h.dials, ep)
		if h.dialErr != nil {
			return nil, fmt.Errorf("%w: dial %s: %w", remote.ErrTransport, ep.Addr(), h.dialErr)
		}
		h.open++
		return &session{host: h}, nil
	})
}

func (h *Host) mkdirAll(dir string) {
	for dir != "/" {
		if _, ok := h.dirs[dir]; !ok {
			h.dirs[dir] = map[string]remote.EntryType{}
		}
		parent := path.Dir(dir)
		if _, ok := h.dirs[parent]; !ok {
			h.dirs[parent] = map[string]remote.EntryType{}
		}
		h.dirs[parent][path.Base(dir)] = remote.EntryDir
		dir = parent
	}
}

type session struct {
	host   *Host
	closed bool
}

func (s *session) List(_ context.Context, dir string) ([]remote.Entry, error) {
	h := s.host
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: session closed", remote.ErrTransport)
	}
	dir = path.Clean(dir)
	if err, ok := h.listFails[dir]; ok {
		return nil, fmt.Errorf("%w: list %s: %w", remote.ErrTransport, dir, err)
	}
	children, ok := h.dirs[dir]
	if !ok {
		return nil, fmt.Errorf("%w: list %s: 550 no such directory", remote.ErrTransport, dir)
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]remote.Entry, 0, len(names))
	for _, name := range names {
		out = append(out, remote.Entry{Name: name, Type: children[name]})
	}
	return out, nil
}

func (s *session) Retrieve(_ context.Context, p string, w io.Writer) error {
	h := s.host
	h.mu.Lock()
	content, ok := h.files[path.Clean(p)]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: retrieve %s: 550 no such file", remote.ErrTransport, p)
	}
	_, err := io.Copy(w, strings.NewReader(string(content)))
	return err
}

func (s *session) Close() error {
	h := s.host
	h.mu.Lock()
	defer h.mu.Unlock()
	if !s.closed {
		s.closed = true
		h.closed++
	}
	return nil
}
