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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/satready/config"
)

func init() {
	var (
		mission string
		date    string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every file of one batch",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			doneCtx, doneFx, err := setupTelemetry("satready-download", cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			a, err := newApp(doneCtx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.catalog.GetConfig(doneCtx, mission)
			if err != nil {
				return err
			}
			scan, err := a.scanner.Open(doneCtx, m)
			if err != nil {
				return err
			}
			files := scan.ListFiles(doneCtx, m.BatchPath(date))
			if err := scan.Close(); err != nil {
				slog.Warn("Failed to close remote session", slog.Any("error", err))
			}
			if len(files) == 0 {
				return fmt.Errorf("no files found for %s/%s", mission, date)
			}

			slog.Info("Downloading batch",
				slog.String("mission", mission),
				slog.String("date", date),
				slog.Int("files", len(files)),
				slog.String("dir", dir))
			return a.scanner.Download(doneCtx, m, files, dir)
		},
	}
	cmd.Flags().StringVar(&mission, "mission", "", "Mission name")
	cmd.Flags().StringVar(&date, "date", "", "Batch tag (12 digits)")
	cmd.Flags().StringVar(&dir, "dir", ".", "Local directory to download into")
	_ = cmd.MarkFlagRequired("mission")
	_ = cmd.MarkFlagRequired("date")

	rootCmd.AddCommand(cmd)
}
