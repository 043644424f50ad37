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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/satready/config"
	"github.com/cardinalhq/satready/internal/notify"
)

func init() {
	var limit int

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Print notifications from the RabbitMQ queue, acknowledging each",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if b, err := notify.ParseBackend(cfg.Notify.Backend); err != nil || b != notify.BackendRabbitMQ {
				return fmt.Errorf("consume needs the %s backend, configured backend is %q",
					notify.BackendRabbitMQ, cfg.Notify.Backend)
			}
			doneCtx, doneFx, err := setupTelemetry("satready-consume", cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			mq, err := notify.NewRabbitMQ(cfg.Notify.RabbitMQ)
			if err != nil {
				return err
			}
			defer func() { _ = mq.Close() }()

			out := c.OutOrStdout()
			n, err := mq.Consume(doneCtx, limit, func(_ context.Context, body []byte) error {
				_, err := fmt.Fprintln(out, string(body))
				return err
			})
			slog.Info("Consumer stopped", slog.String("queue", mq.Queue()), slog.Int("messages", n))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "max", 0, "Stop after this many messages (0 means run until interrupted)")

	rootCmd.AddCommand(cmd)
}
