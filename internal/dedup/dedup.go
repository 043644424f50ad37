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

// Package dedup decides whether a notification has already been recorded
// in the registry's event log.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/satready/internal/logctx"
	"github.com/cardinalhq/satready/internal/registry"
)

// Mode selects how event content is compared.
type Mode string

const (
	// ModeContent matches byte-identical content.
	ModeContent Mode = "content"
	// ModeCanonical matches notifications on (mission, date, status),
	// ignoring key order, whitespace and the event id. Content without
	// those fields is compared byte for byte.
	ModeCanonical Mode = "canonical"
)

// ParseMode accepts "" as ModeContent.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeContent:
		return ModeContent, nil
	case ModeCanonical:
		return ModeCanonical, nil
	default:
		return "", fmt.Errorf("unknown dedup mode %q", s)
	}
}

// EventLister is the subset of the registry the gate reads.
type EventLister interface {
	ListEvents(ctx context.Context) ([]registry.Event, error)
}

// Gate checks candidate notifications against every event in the log.
type Gate struct {
	events EventLister
	mode   Mode
}

func NewGate(events EventLister, mode Mode) *Gate {
	if mode == "" {
		mode = ModeContent
	}
	return &Gate{events: events, mode: mode}
}

func (g *Gate) Mode() Mode {
	return g.mode
}

// IsDuplicate reports whether an event with the same content exists. A
// registry failure is returned so the caller can skip the batch rather
// than publish twice.
func (g *Gate) IsDuplicate(ctx context.Context, content string) (bool, error) {
	events, err := g.events.ListEvents(ctx)
	if err != nil {
		return false, fmt.Errorf("deduplication check failed: %w", err)
	}

	var dup bool
	switch g.mode {
	case ModeCanonical:
		seen := mapset.NewThreadUnsafeSetWithSize[uint64](len(events))
		for _, ev := range events {
			seen.Add(canonicalKey(ev.Content))
		}
		dup = seen.Contains(canonicalKey(content))
	default:
		for _, ev := range events {
			if ev.Content == content {
				dup = true
				break
			}
		}
	}

	if dup {
		logctx.FromContext(ctx).Info("Duplicate notification detected, skipping",
			slog.String("mode", string(g.mode)))
		duplicatesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", string(g.mode))))
	}
	return dup, nil
}

type triple struct {
	Status  string `json:"status"`
	Mission string `json:"mission"`
	Date    string `json:"date"`
}

// canonicalKey hashes the (mission, date, status) triple of a notification.
func canonicalKey(content string) uint64 {
	var t triple
	if err := json.Unmarshal([]byte(content), &t); err != nil || t == (triple{}) {
		return xxhash.Sum64String(content)
	}
	d := xxhash.New()
	_, _ = d.WriteString(t.Mission)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(t.Date)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(t.Status)
	return d.Sum64()
}
