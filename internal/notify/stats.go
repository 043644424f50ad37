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

package notify

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	messagesSent     metric.Int64Counter
	messagesReceived metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/satready/internal/notify")

	var err error
	messagesSent, err = meter.Int64Counter(
		"satready.notify.messages_sent",
		metric.WithDescription("Number of notifications handed to the queue, by backend and result"),
	)
	if err != nil {
		panic(err)
	}

	messagesReceived, err = meter.Int64Counter(
		"satready.notify.messages_received",
		metric.WithDescription("Number of notifications taken from the queue, by result"),
	)
	if err != nil {
		panic(err)
	}
}

func recordSend(ctx context.Context, backend Backend, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	messagesSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", string(backend)),
		attribute.String("result", result),
	))
}

func recordReceive(ctx context.Context, result string) {
	messagesReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
