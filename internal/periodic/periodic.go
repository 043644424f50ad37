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

// Package periodic runs a function immediately and then on a fixed interval
// until its context is cancelled.
package periodic

import (
	"context"
	"log/slog"
	"time"
)

// Func is one unit of periodic work. A returned error is logged and the
// next run happens on schedule.
type Func func(ctx context.Context) error

type Runner struct {
	fn       Func
	interval time.Duration
	ll       *slog.Logger
}

func New(name string, fn Func, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		fn:       fn,
		interval: interval,
		ll:       logger.With(slog.String("component", name)),
	}
}

// Run blocks until ctx is done. Runs never overlap: a run that takes longer
// than the interval delays the next one instead of stacking up.
func (r *Runner) Run(ctx context.Context) {
	r.ll.Debug("Starting periodic loop", slog.Duration("interval", r.interval))

	r.once(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.ll.Debug("Context cancelled, stopping periodic loop")
			return
		case <-ticker.C:
			r.once(ctx)
		}
	}
}

// Start runs the loop in a goroutine and returns a function that stops it.
func (r *Runner) Start(ctx context.Context) context.CancelFunc {
	runCtx, cancel := context.WithCancel(ctx)
	go r.Run(runCtx)
	return cancel
}

func (r *Runner) once(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.ll.Error("Periodic run failed (continuing)", slog.Any("error", err))
	}
}
