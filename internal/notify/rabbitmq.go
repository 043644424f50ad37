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

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cardinalhq/satready/internal/logctx"
)

type RabbitMQConfig struct {
	URL          string        `mapstructure:"url"`
	Queue        string        `mapstructure:"queue"`
	Durable      bool          `mapstructure:"durable"`
	Heartbeat    time.Duration `mapstructure:"heartbeat"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// RabbitMQ publishes to a named queue through the default exchange. The
// connection is opened on first use and reused until it fails.
type RabbitMQ struct {
	cfg RabbitMQConfig

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ Sender = (*RabbitMQ)(nil)

func NewRabbitMQ(cfg RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("rabbitmq queue is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &RabbitMQ{cfg: cfg}, nil
}

func (r *RabbitMQ) Queue() string {
	return r.cfg.Queue
}

func (r *RabbitMQ) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.publish(ctx, msg)
	recordSend(ctx, BackendRabbitMQ, err)
	if err != nil {
		return publishErr(BackendRabbitMQ, r.cfg.Queue, err)
	}
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, msg Message) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	mode := amqp.Transient
	if r.cfg.Durable {
		mode = amqp.Persistent
	}
	err = ch.PublishWithContext(ctx, "", r.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		Timestamp:    time.Now(),
		Body:         msg.Body,
	})
	if err != nil {
		r.reset()
	}
	return err
}

// Handler processes one received message body. Returning an error leaves
// the message on the queue.
type Handler func(ctx context.Context, body []byte) error

// Receive takes at most one message from the queue and passes it to h. The
// message is acknowledged only when h succeeds; otherwise it is requeued.
// It reports whether a message was available.
func (r *RabbitMQ) Receive(ctx context.Context, h Handler) (bool, error) {
	r.mu.Lock()
	ch, err := r.channel()
	if err != nil {
		r.mu.Unlock()
		return false, fmt.Errorf("rabbitmq %s: %w", r.cfg.Queue, err)
	}
	d, ok, err := ch.Get(r.cfg.Queue, false)
	if err != nil {
		r.reset()
		r.mu.Unlock()
		return false, fmt.Errorf("rabbitmq get %s: %w", r.cfg.Queue, err)
	}
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	if herr := h(ctx, d.Body); herr != nil {
		recordReceive(ctx, "requeued")
		if err := d.Nack(false, true); err != nil {
			logctx.FromContext(ctx).Error("Failed to requeue message", slog.Any("error", err))
		}
		return true, herr
	}
	recordReceive(ctx, "acked")
	if err := d.Ack(false); err != nil {
		return true, fmt.Errorf("rabbitmq ack: %w", err)
	}
	return true, nil
}

// Consume receives messages until ctx is cancelled or limit messages have
// been handled (limit <= 0 means no limit). An empty queue is polled again
// after the configured interval. Handler failures are logged and do not
// stop the loop.
func (r *RabbitMQ) Consume(ctx context.Context, limit int, h Handler) (int, error) {
	logger := logctx.FromContext(ctx)
	handled := 0
	for limit <= 0 || handled < limit {
		got, err := r.Receive(ctx, h)
		if got {
			handled++
		}
		switch {
		case err != nil && !got:
			return handled, err
		case err != nil:
			logger.Warn("Message handler failed, message requeued", slog.Any("error", err))
		}
		if got {
			continue
		}
		select {
		case <-ctx.Done():
			return handled, nil
		case <-time.After(r.cfg.PollInterval):
		}
	}
	return handled, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reset()
}

// channel returns the open channel, connecting and declaring the queue if
// needed. Callers hold r.mu.
func (r *RabbitMQ) channel() (*amqp.Channel, error) {
	if r.ch != nil && r.conn != nil && !r.conn.IsClosed() {
		return r.ch, nil
	}
	r.reset()

	conn, err := amqp.DialConfig(r.cfg.URL, amqp.Config{Heartbeat: r.cfg.Heartbeat})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(r.cfg.Queue, r.cfg.Durable, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	r.conn, r.ch = conn, ch
	return ch, nil
}

func (r *RabbitMQ) reset() error {
	var err error
	if r.conn != nil && !r.conn.IsClosed() {
		err = r.conn.Close()
	}
	r.conn, r.ch = nil, nil
	return err
}
