// Package dispatcher expands crawl batches into per-target queue items.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/crawl"
)

// Dispatcher turns one batch into independent crawl units sharing a
// single run timestamp and window.
type Dispatcher struct {
	queue  crawl.Queue
	ids    crawl.IDGenerator
	clock  crawl.Clock
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(queue crawl.Queue, ids crawl.IDGenerator, clock crawl.Clock, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, ids: ids, clock: clock, logger: logger}
}

// Dispatch validates the batch, resolves its window, and enqueues one
// item per target. All items share one run timestamp, so re-running the
// same batch overwrites its own keys. Handles are returned in the
// targets' input order; an empty batch yields an empty slice and no
// queue traffic.
func (d *Dispatcher) Dispatch(ctx context.Context, spec crawl.BatchSpec) ([]crawl.TaskHandle, error) {
	window, err := d.resolveWindow(spec.Window)
	if err != nil {
		return nil, err
	}
	// Reject the whole batch up front: a validation failure after the
	// first Enqueue would leave earlier targets scheduled with no
	// handles returned for them.
	for _, target := range spec.Targets {
		if target == "" {
			return nil, fmt.Errorf("batch contains an empty target")
		}
	}

	runTS := crawl.NewRunTimestamp(d.clock.Now())
	handles := make([]crawl.TaskHandle, 0, len(spec.Targets))

	for _, target := range spec.Targets {
		taskID, err := d.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate task id: %w", err)
		}
		item := crawl.QueueItem{
			TaskID:  taskID,
			Target:  target,
			Window:  window,
			RunTS:   runTS,
			Storage: spec.Storage,
		}
		if err := d.queue.Enqueue(ctx, item); err != nil {
			return nil, fmt.Errorf("enqueue target %s: %w", target, err)
		}
		handles = append(handles, crawl.TaskHandle{TaskID: taskID, Target: target})
	}

	d.logger.Info("batch dispatched",
		zap.String("run_ts", string(runTS)),
		zap.Int("targets", len(handles)),
		zap.Time("window_since", window.Since),
		zap.Time("window_until", window.Until))
	return handles, nil
}

// resolveWindow applies the default window when the batch carries none.
func (d *Dispatcher) resolveWindow(window *crawl.DateWindow) (crawl.DateWindow, error) {
	if window == nil {
		return crawl.DefaultWindow(d.clock.Now()), nil
	}
	if err := window.Validate(); err != nil {
		return crawl.DateWindow{}, fmt.Errorf("invalid batch window: %w", err)
	}
	return *window, nil
}
