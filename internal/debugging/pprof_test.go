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

package debugging

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPprof_Disabled(t *testing.T) {
	addr, err := RunPprof(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestRunPprof_ServesIndexUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addr, err := RunPprof(ctx, 16061)
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://127.0.0.1:16061/debug/pprof/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "goroutine")

	cancel()
	assert.Eventually(t, func() bool {
		_, err := http.Get("http://127.0.0.1:16061/debug/pprof/")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}
