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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/satready/config"
	"github.com/cardinalhq/satready/internal/debugging"
	"github.com/cardinalhq/satready/internal/healthcheck"
	"github.com/cardinalhq/satready/internal/periodic"
	"github.com/cardinalhq/satready/internal/sweep"
)

func init() {
	var (
		missions []string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Check every mission once, or repeatedly with --interval",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			doneCtx, doneFx, err := setupTelemetry("satready-sweep", cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			a, err := newApp(doneCtx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if interval <= 0 {
				sum, err := a.sweeper.Run(doneCtx, missions...)
				recordSweep(doneCtx, outcome(sum, err))
				return err
			}
			return watch(doneCtx, a.sweeper, cfg, interval, missions)
		},
	}
	cmd.Flags().StringSliceVar(&missions, "mission", nil, "Only check these missions (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the sweep at this interval and serve health checks")

	rootCmd.AddCommand(cmd)
}

// watch runs a sweep immediately and then every interval until ctx is
// cancelled. Sweep failures are reported through the health server and do
// not stop the loop.
func watch(ctx context.Context, sw *sweep.Sweeper, cfg *config.Config, interval time.Duration, missions []string) error {
	health := healthcheck.NewServer(healthcheck.Config{
		Port:           cfg.Health.Port,
		MaxFatalSweeps: cfg.Health.MaxFatalSweeps,
	})
	if _, err := debugging.RunPprof(ctx, cfg.Health.PprofPort); err != nil {
		slog.Warn("Failed to start pprof server", slog.Any("error", err))
	}

	runner := periodic.New("sweeper", func(ctx context.Context) error {
		sum, err := sw.Run(ctx, missions...)
		recordSweep(ctx, outcome(sum, err))
		report := healthcheck.SweepReport{
			ID:             sum.ID,
			Started:        sum.Started,
			Duration:       sum.Duration,
			Missions:       sum.Missions,
			MissionsFailed: sum.MissionsFailed,
			BatchesReady:   sum.BatchesReady,
			Published:      sum.Published,
			Duplicates:     sum.Duplicates,
		}
		if err != nil {
			report.Error = err.Error()
		}
		health.RecordSweep(report, err != nil && sum.Missions == 0)
		return err
	}, interval, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return health.Start(gctx)
	})
	g.Go(func() error {
		health.SetReady(true)
		runner.Run(gctx)
		health.SetReady(false)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func outcome(sum sweep.Summary, err error) string {
	switch {
	case err == nil:
		return "ok"
	case sum.Missions == 0:
		return "failed"
	default:
		return "partial"
	}
}
