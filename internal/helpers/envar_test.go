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

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBoolEnv(t *testing.T) {
	const envVar = "SATREADY_TEST_BOOL"

	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
	}{
		{"true lowercase", "true", false, true},
		{"True as written by python", "True", false, true},
		{"1", "1", false, true},
		{"yes", "YES", false, true},
		{"on", "on", false, true},
		{"enabled", "Enabled", false, true},
		{"false", "false", true, false},
		{"0", "0", true, false},
		{"no", "no", true, false},
		{"off", "OFF", true, false},
		{"disabled", "disabled", true, false},
		{"empty uses default true", "", true, true},
		{"empty uses default false", "", false, false},
		{"whitespace uses default", "   ", true, true},
		{"padded true", "  true  ", false, true},
		{"unknown value is true", "maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envVar, tt.envValue)
			assert.Equal(t, tt.expected, GetBoolEnv(envVar, tt.defaultValue))
		})
	}
}

func TestGetBoolEnv_Unset(t *testing.T) {
	assert.True(t, GetBoolEnv("SATREADY_TEST_BOOL_NEVER_SET", true))
	assert.False(t, GetBoolEnv("SATREADY_TEST_BOOL_NEVER_SET", false))
}

func TestLegacyEnv(t *testing.T) {
	t.Setenv("CORE_APP", "core.internal")

	v, ok := LegacyEnv("SATREADY_TEST_REGISTRY_URL", "CORE_APP")
	assert.True(t, ok)
	assert.Equal(t, "core.internal", v)

	t.Setenv("SATREADY_TEST_REGISTRY_URL", "http://registry:8000/api")
	_, ok = LegacyEnv("SATREADY_TEST_REGISTRY_URL", "CORE_APP")
	assert.False(t, ok, "preferred variable wins even when legacy is set")

	_, ok = LegacyEnv("SATREADY_TEST_UNSET", "SATREADY_TEST_LEGACY_UNSET")
	assert.False(t, ok)
}
