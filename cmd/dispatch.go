package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/app"
	"github.com/feedlake/social-crawler/internal/batch"
	"github.com/feedlake/social-crawler/internal/crawl"
)

func newDispatchCmd() *cobra.Command {
	var batchFile string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch a crawl batch onto the queue",
		Long: `Loads a YAML batch document and enqueues one crawl unit per target.
With the in-memory queue transport the worker pool runs in-process until
every dispatched unit has a recorded result; with a distributed transport
the command returns once the batch is enqueued.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			b, err := batch.Load(batchFile)
			if err != nil {
				return err
			}

			handles, err := a.Dispatcher.Dispatch(cmd.Context(), b.Spec)
			if err != nil {
				return fmt.Errorf("dispatch batch: %w", err)
			}
			for _, h := range handles {
				cmd.Printf("%s\t%s\n", h.TaskID, h.Target)
			}

			if a.Config.Queue.Transport != "memory" {
				return nil
			}
			return runInProcess(cmd.Context(), a, handles)
		},
	}

	cmd.Flags().StringVar(&batchFile, "batch", "", "path to the YAML batch document")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

// runInProcess drains an in-memory queue with a local worker pool,
// returning once every handle has a recorded result.
func runInProcess(ctx context.Context, a *app.App, handles []crawl.TaskHandle) error {
	if len(handles) == 0 {
		return nil
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := a.NewPool()
	pool.Start(poolCtx)

	pending := make(map[string]bool, len(handles))
	for _, h := range handles {
		pending[h.TaskID] = true
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			cancel()
			pool.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
		for taskID := range pending {
			_, err := a.Results.Get(ctx, taskID)
			if errors.Is(err, crawl.ErrResultNotFound) {
				continue
			}
			if err != nil {
				a.Logger.Warn("result poll failed", zap.String("task_id", taskID), zap.Error(err))
				continue
			}
			delete(pending, taskID)
		}
	}

	cancel()
	pool.Wait()
	return nil
}
