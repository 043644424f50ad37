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

package sweep

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	batchesReady    metric.Int64Counter
	eventsPublished metric.Int64Counter
	missionsFailed  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/satready/internal/sweep")

	var err error
	batchesReady, err = meter.Int64Counter(
		"satready.sweep.batches_ready",
		metric.WithDescription("Number of complete batches found on mission hosts"),
	)
	if err != nil {
		panic(err)
	}

	eventsPublished, err = meter.Int64Counter(
		"satready.sweep.events_published",
		metric.WithDescription("Number of ready notifications published"),
	)
	if err != nil {
		panic(err)
	}

	missionsFailed, err = meter.Int64Counter(
		"satready.sweep.missions_failed",
		metric.WithDescription("Number of missions skipped or partially failed in a sweep"),
	)
	if err != nil {
		panic(err)
	}
}

func recordBatchesReady(ctx context.Context, mission string, n int) {
	batchesReady.Add(ctx, int64(n), metric.WithAttributes(attribute.String("mission", mission)))
}

func recordPublished(ctx context.Context, mission string) {
	eventsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("mission", mission)))
}

func recordMissionFailure(ctx context.Context, mission string) {
	missionsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("mission", mission)))
}
