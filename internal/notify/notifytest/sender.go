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

// Package notifytest provides a recording Sender for tests.
package notifytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cardinalhq/satready/internal/notify"
)

// Sender records every message it is asked to send. When Err is set, Send
// fails with it wrapped in notify.ErrPublish and records nothing.
type Sender struct {
	mu     sync.Mutex
	sent   []notify.Message
	err    error
	closed bool
}

var _ notify.Sender = (*Sender)(nil)

func (s *Sender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return fmt.Errorf("%w: test: %w", notify.ErrPublish, s.err)
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Fail makes subsequent sends fail with err; nil restores success.
func (s *Sender) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Sender) Sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.sent...)
}

// Bodies returns the sent message bodies as strings.
func (s *Sender) Bodies() []string {
	var out []string
	for _, m := range s.Sent() {
		out = append(out, string(m.Body))
	}
	return out
}

func (s *Sender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
