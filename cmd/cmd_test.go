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
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/registry/registrytest"
	"github.com/cardinalhq/satready/internal/sweep"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		sum  sweep.Summary
		err  error
		want string
	}{
		{"clean", sweep.Summary{Missions: 2}, nil, "ok"},
		{"nothing configured", sweep.Summary{}, nil, "ok"},
		{"mission failures", sweep.Summary{Missions: 2, MissionsFailed: 1}, errors.New("boom"), "partial"},
		{"list failed", sweep.Summary{}, errors.New("boom"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcome(tt.sum, tt.err))
		})
	}
}

func TestMissionsCommand(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddMission(registry.MissionConfig{
		SatelliteMission: "GOES16",
		FolderLocations:  map[string]string{"l1b": "L1B"},
		FTPServer:        "ftp.example.com",
		FTPPort:          21,
	})
	srv.AddMission(registry.MissionConfig{SatelliteMission: "BROKEN"})

	t.Setenv("SATREADY_REGISTRY_URL", srv.BaseURL())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"missions"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	lines := out.String()
	assert.Contains(t, lines, "GOES16\tftp.example.com:21\t[L1B]\n")
	assert.Contains(t, lines, "BROKEN\tinvalid:")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("BROKEN")), bytes.Index(out.Bytes(), []byte("GOES16")))
}

func TestConsumeRejectsOtherBackends(t *testing.T) {
	t.Setenv("SATREADY_NOTIFY_BACKEND", "kafka")

	rootCmd.SetArgs([]string{"consume", "--max", "1"})
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq")
}
