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

package idgen

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyFlakeGenerator_NextID(t *testing.T) {
	gen, err := NewFlakeGenerator()
	require.NoError(t, err, "failed to create SonyFlakeGenerator")

	id := gen.NextID()
	id2 := gen.NextID()
	assert.Greater(t, id2, id, "NextID() did not return increasing id")
}

func TestInstanceID(t *testing.T) {
	require.NotNil(t, DefaultFlakeGenerator)
	require.NotEmpty(t, InstanceID)

	v, err := strconv.ParseInt(InstanceID, 36, 64)
	require.NoError(t, err)
	assert.Positive(t, v)
	assert.Greater(t, DefaultFlakeGenerator.NextID(), v, "later ids sort after the instance id")
}

func TestULIDGenerator_Monotonic(t *testing.T) {
	gen := NewULIDGenerator()
	now := time.Now()

	a := gen.Make(now)
	b := gen.Make(now)
	assert.Less(t, a, b, "ids in the same millisecond must increase")

	parsed, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}

func TestULIDGenerator_Concurrent(t *testing.T) {
	gen := NewULIDGenerator()
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := gen.Make(time.Now())
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestSweepID(t *testing.T) {
	a, b := SweepID(), SweepID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
