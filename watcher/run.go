// Copyright (c) 2025 BVK Chaitanya

package watcher

import (
	"context"
	"log/slog"

	"github.com/bvk/fibwatch/ctxutil"
)

// Run drives poll cycles until the context is canceled. The first cycle
// starts after the configured initial delay; after that the loop sleeps the
// full poll interval measured from the end of each cycle, so cycles never
// overlap. A bad cycle is logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	ctxutil.Sleep(ctx, w.opts.InitialDelay)
	slog.Info("watch poll loop started", "interval", w.opts.PollInterval)

	for ctx.Err() == nil {
		if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
			slog.Info("watch cycle complete", "alerts", len(alerts))
		}
		ctxutil.Sleep(ctx, w.opts.PollInterval)
	}
	return context.Cause(ctx)
}
