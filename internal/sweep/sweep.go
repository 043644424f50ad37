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

// Package sweep runs one pass over every mission: find complete batches,
// record them as ready and announce each one once.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/satready/internal/catalog"
	"github.com/cardinalhq/satready/internal/eventpub"
	"github.com/cardinalhq/satready/internal/idgen"
	"github.com/cardinalhq/satready/internal/logctx"
	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/scanner"
)

// Catalog resolves missions.
type Catalog interface {
	ListMissions(ctx context.Context) ([]string, error)
	GetConfig(ctx context.Context, name string) (catalog.Mission, error)
}

// Registry reads and writes processing records.
type Registry interface {
	ListProcessed(ctx context.Context, q registry.ProcessedQuery) ([]registry.ProcessedRecord, error)
	UpsertProcessed(ctx context.Context, rec registry.ProcessedRecord) (int, error)
}

type Deduper interface {
	IsDuplicate(ctx context.Context, content string) (bool, error)
}

// Publisher creates the registry event and sends the queue message.
type Publisher interface {
	CreateEvent(ctx context.Context, content string) (registry.ID, error)
	Publish(ctx context.Context, n eventpub.Notification) error
}

type Sweeper struct {
	catalog   Catalog
	scanner   *scanner.Scanner
	registry  Registry
	dedup     Deduper
	publisher Publisher
}

func New(cat Catalog, sc *scanner.Scanner, reg Registry, dedup Deduper, pub Publisher) *Sweeper {
	return &Sweeper{
		catalog:   cat,
		scanner:   sc,
		registry:  reg,
		dedup:     dedup,
		publisher: pub,
	}
}

// Summary counts what one sweep did.
type Summary struct {
	ID              string
	Started         time.Time
	Duration        time.Duration
	Missions        int
	MissionsFailed  int
	BatchesReady    int
	BatchesExcluded int
	Duplicates      int
	Published       int
	BatchesFailed   int
}

// Run sweeps the named missions, or every mission in the catalog when none
// are named. The catalog's mission list is refreshed at the start of every
// run either way, so names configured after an earlier run are found.
// Missions and batches are handled one at a time. A failing mission or
// batch is logged and skipped; the failures are returned together once the
// sweep is complete. Only a failure to list the missions stops the sweep
// early.
func (s *Sweeper) Run(ctx context.Context, missions ...string) (Summary, error) {
	sum := Summary{ID: idgen.SweepID(), Started: time.Now()}
	ctx, logger := logctx.With(ctx, slog.String("sweep", sum.ID))

	known, err := s.catalog.ListMissions(ctx)
	if err != nil {
		return sum, fmt.Errorf("list missions: %w", err)
	}
	if len(missions) == 0 {
		missions = known
	}

	var errs *multierror.Error
	for _, name := range missions {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		sum.Missions++
		if err := s.sweepMission(ctx, name, &sum); err != nil {
			sum.MissionsFailed++
			recordMissionFailure(ctx, name)
			errs = multierror.Append(errs, err)
		}
	}

	sum.Duration = time.Since(sum.Started)
	logger.Info("Sweep complete",
		slog.Int("missions", sum.Missions),
		slog.Int("missionsFailed", sum.MissionsFailed),
		slog.Int("batchesReady", sum.BatchesReady),
		slog.Int("published", sum.Published),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("batchesFailed", sum.BatchesFailed),
		slog.Duration("duration", sum.Duration))
	return sum, errs.ErrorOrNil()
}

func (s *Sweeper) sweepMission(ctx context.Context, name string, sum *Summary) error {
	ctx, logger := logctx.With(ctx, slog.String("mission", name))

	m, err := s.catalog.GetConfig(ctx, name)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidMission) {
			logger.Warn("Skipping invalid mission", slog.Any("error", err))
		} else {
			logger.Error("Failed to resolve mission", slog.Any("error", err))
		}
		return fmt.Errorf("mission %s: %w", name, err)
	}

	scan, err := s.scanner.Open(ctx, m)
	if err != nil {
		logger.Error("Failed to connect to mission host", slog.Any("error", err))
		return fmt.Errorf("mission %s: %w", name, err)
	}
	defer func() {
		if err := scan.Close(); err != nil {
			logger.Warn("Failed to close remote session", slog.Any("error", err))
		}
	}()

	ready, err := scan.ReadyBatches(ctx)
	if err != nil {
		logger.Error("Failed to scan mission", slog.Any("error", err))
		return fmt.Errorf("mission %s: %w", name, err)
	}
	sum.BatchesReady += len(ready)
	recordBatchesReady(ctx, name, len(ready))

	processed, err := s.registry.ListProcessed(ctx, registry.ProcessedQuery{SatelliteMission: name})
	if err != nil {
		logger.Error("Failed to read processing records", slog.Any("error", err))
		return fmt.Errorf("mission %s: %w", name, err)
	}
	excluded := ExcludedDates(processed)

	var errs *multierror.Error
	for _, tag := range ready {
		bctx, blog := logctx.With(ctx, slog.String("date", tag))
		if excluded.Contains(tag) {
			blog.Info("Batch already handled, skipping")
			sum.BatchesExcluded++
			continue
		}
		blog.Info("Batch ready")
		if err := s.announce(bctx, scan, m, tag, sum); err != nil {
			blog.Error("Batch failed", slog.Any("error", err))
			sum.BatchesFailed++
			errs = multierror.Append(errs, fmt.Errorf("mission %s date %s: %w", name, tag, err))
		}
	}
	logger.Info("Done checking mission", slog.Int("ready", len(ready)))
	return errs.ErrorOrNil()
}

// announce records one ready batch and publishes its notification unless
// an identical event already exists. A failed event creation means nothing
// is published.
func (s *Sweeper) announce(ctx context.Context, scan *scanner.Scan, m catalog.Mission, tag string, sum *Summary) error {
	files := scan.ListFiles(ctx, m.BatchPath(tag))
	if files == nil {
		files = []string{}
	}
	if _, err := s.registry.UpsertProcessed(ctx, registry.ProcessedRecord{
		SatelliteMission: m.Name,
		Status:           registry.StatusReady,
		DateTag:          tag,
		Files:            files,
	}); err != nil {
		return fmt.Errorf("record ready batch: %w", err)
	}

	n := eventpub.Ready(m.Name, tag)
	content, err := n.Content()
	if err != nil {
		return err
	}
	dup, err := s.dedup.IsDuplicate(ctx, content)
	if err != nil {
		return err
	}
	if dup {
		sum.Duplicates++
		return nil
	}

	id, err := s.publisher.CreateEvent(ctx, content)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, n.WithEventID(id)); err != nil {
		return err
	}
	sum.Published++
	recordPublished(ctx, m.Name)
	return nil
}

// openStatuses are the record states that leave a batch eligible.
var openStatuses = mapset.NewSet(
	registry.StatusProcessing,
	registry.StatusDownloading,
	registry.StatusReady,
)

// ExcludedDates returns the date tags of records whose status is anything
// other than processing, downloading or ready. Batches with those tags are
// not announced again; batches whose record is still in one of those three
// states are.
func ExcludedDates(records []registry.ProcessedRecord) mapset.Set[string] {
	out := mapset.NewThreadUnsafeSet[string]()
	for _, r := range records {
		if !openStatuses.Contains(r.Status) {
			out.Add(r.DateTag)
		}
	}
	return out
}
