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

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/satready/config"
	"github.com/cardinalhq/satready/internal/catalog"
	"github.com/cardinalhq/satready/internal/dedup"
	"github.com/cardinalhq/satready/internal/eventpub"
	"github.com/cardinalhq/satready/internal/notify"
	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/remote"
	"github.com/cardinalhq/satready/internal/scanner"
	"github.com/cardinalhq/satready/internal/sweep"
)

// app holds the components built from configuration. Close releases the
// queue connection and the catalog cache.
type app struct {
	cfg      *config.Config
	registry *registry.Client
	catalog  *catalog.Catalog
	scanner  *scanner.Scanner
	sender   notify.Sender
	sweeper  *sweep.Sweeper
}

// newApp wires the registry, catalog and remote scanner. The queue sender
// and sweeper are only built when withQueue is set.
func newApp(ctx context.Context, cfg *config.Config, withQueue bool) (*app, error) {
	dialer, err := remote.NewDialer(cfg.Remote)
	if err != nil {
		return nil, err
	}
	client := registry.NewClient(cfg.Registry)
	a := &app{
		cfg:      cfg,
		registry: client,
		catalog:  catalog.New(client, cfg.Catalog.TTL),
		scanner:  scanner.New(dialer),
	}
	if !withQueue {
		return a, nil
	}

	mode, err := dedup.ParseMode(cfg.Dedup.Mode)
	if err != nil {
		a.Close()
		return nil, err
	}
	sender, err := notify.NewSender(ctx, cfg.Notify)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create queue sender: %w", err)
	}
	a.sender = sender

	pub := eventpub.New(client, sender, cfg.Event)
	slog.Info("Publishing notifications",
		slog.String("backend", cfg.Notify.Backend),
		slog.String("eventQueue", cfg.Event.QueueName),
		slog.String("producerIP", pub.ProducerIP()),
		slog.String("dedupMode", string(mode)))

	a.sweeper = sweep.New(a.catalog, a.scanner, client, dedup.NewGate(client, mode), pub)
	return a, nil
}

func (a *app) Close() {
	if a.sender != nil {
		if err := a.sender.Close(); err != nil {
			slog.Warn("Failed to close queue sender", slog.Any("error", err))
		}
	}
	a.catalog.Close()
}
