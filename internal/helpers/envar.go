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

// Package helpers reads settings that predate the SATREADY_ environment
// variables.
package helpers

import (
	"os"
	"strings"
)

// GetBoolEnv reads a boolean environment variable.
// "true", "1", "yes", "on", "enable" and "enabled" are true and "false", "0",
// "no", "off", "disable" and "disabled" are false, case insensitively.
// Any other non-empty value is true. An unset or empty variable yields
// defaultValue.
func GetBoolEnv(envVar string, defaultValue bool) bool {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(envVar)))

	switch env {
	case "true", "1", "yes", "on", "enable", "enabled":
		return true
	case "false", "0", "no", "off", "disable", "disabled":
		return false
	case "":
		return defaultValue
	default:
		return true
	}
}

// LegacyEnv returns the value of legacyVar when preferredVar is unset and
// legacyVar is set to a non-empty value.
func LegacyEnv(preferredVar, legacyVar string) (string, bool) {
	if _, ok := os.LookupEnv(preferredVar); ok {
		return "", false
	}
	v := strings.TrimSpace(os.Getenv(legacyVar))
	return v, v != ""
}
