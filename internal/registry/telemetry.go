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

package registry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	requestErrors metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/satready/internal/registry")

	var err error

	requestErrors, err = meter.Int64Counter(
		"satready.registry.request_errors",
		metric.WithDescription("Number of failed registry requests"),
	)
	if err != nil {
		log.Fatalf("failed to create registry.request_errors counter: %v", err)
	}
}

func recordRequestError(op, reason string) {
	requestErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("error_reason", reason),
	))
}
