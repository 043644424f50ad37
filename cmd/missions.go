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
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "List the configured missions and their required folders",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			doneCtx, doneFx, err := setupTelemetry("satready-missions", cfg.Debug)
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

			names, err := a.catalog.ListMissions(doneCtx)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			for _, name := range names {
				m, err := a.catalog.GetConfig(doneCtx, name)
				if err != nil {
					fmt.Fprintf(out, "%s\tinvalid: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%v\n", name, m.Endpoint.Addr(), m.RequiredFolders.ToSlice())
			}
			return nil
		},
	}

	rootCmd.AddCommand(cmd)
}
