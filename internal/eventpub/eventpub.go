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

// Package eventpub records readiness events in the registry and publishes
// the matching notification to the queue.
package eventpub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/satready/internal/logctx"
	"github.com/cardinalhq/satready/internal/notify"
	"github.com/cardinalhq/satready/internal/registry"
)

const (
	DefaultQueueName   = "ftp-tasks"
	DefaultServiceName = "FTP Checker"
)

// Notification is the queue message body. EventID stays nil until the
// registry has assigned one; it is then serialized as a string.
type Notification struct {
	Status  string  `json:"status"`
	Mission string  `json:"mission"`
	Date    string  `json:"date"`
	EventID *string `json:"event_id"`
}

// Ready builds the notification for a batch found complete.
func Ready(mission, date string) Notification {
	return Notification{Status: registry.StatusReady, Mission: mission, Date: date}
}

// Content is the serialized form stored as the event content and used for
// duplicate detection. It always carries a null event id, and is laid out
// byte for byte like the events already in the registry, which were written
// with ", " and ": " separators and ASCII-only escapes.
func (n Notification) Content() (string, error) {
	n.EventID = nil
	return string(n.encode()), nil
}

// Body is the queue message: the content layout with the event id filled in.
func (n Notification) Body() []byte {
	return n.encode()
}

func (n Notification) encode() []byte {
	id := "null"
	if n.EventID != nil {
		id = quoteASCII(*n.EventID)
	}
	return fmt.Appendf(nil, `{"status": %s, "mission": %s, "date": %s, "event_id": %s}`,
		quoteASCII(n.Status), quoteASCII(n.Mission), quoteASCII(n.Date), id)
}

// WithEventID returns a copy carrying id.
func (n Notification) WithEventID(id registry.ID) Notification {
	s := id.String()
	n.EventID = &s
	return n
}

// EventCreator is the subset of the registry the publisher writes to.
type EventCreator interface {
	CreateEvent(ctx context.Context, ev registry.NewEvent) (registry.ID, error)
}

type Config struct {
	QueueName   string `mapstructure:"queue_name"`
	ServiceName string `mapstructure:"service_name"`
	ProducerIP  string `mapstructure:"producer_ip"`
}

func DefaultConfig() Config {
	return Config{
		QueueName:   DefaultQueueName,
		ServiceName: DefaultServiceName,
	}
}

type Publisher struct {
	events EventCreator
	sender notify.Sender
	cfg    Config
}

// New resolves the producer address when none is configured.
func New(events EventCreator, sender notify.Sender, cfg Config) *Publisher {
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.ProducerIP == "" {
		cfg.ProducerIP = ProducerIP()
	}
	return &Publisher{events: events, sender: sender, cfg: cfg}
}

// CreateEvent records an event with the given content and returns the id
// the registry assigned. There is no retry.
func (p *Publisher) CreateEvent(ctx context.Context, content string) (registry.ID, error) {
	id, err := p.events.CreateEvent(ctx, registry.NewEvent{
		QueueName:   p.cfg.QueueName,
		Content:     content,
		ServiceName: p.cfg.ServiceName,
		ProducerIP:  p.cfg.ProducerIP,
	})
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	logctx.FromContext(ctx).Debug("Event created", slog.String("eventID", id.String()))
	return id, nil
}

// Publish sends n to the queue, keyed by mission.
func (p *Publisher) Publish(ctx context.Context, n Notification) error {
	if err := p.sender.Send(ctx, notify.Message{Key: n.Mission, Body: n.Body()}); err != nil {
		return err
	}
	logctx.FromContext(ctx).Info("Notification published",
		slog.String("date", n.Date),
		slog.String("queue", p.cfg.QueueName))
	return nil
}

func (p *Publisher) ProducerIP() string {
	return p.cfg.ProducerIP
}
