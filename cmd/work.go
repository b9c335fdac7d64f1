package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run the crawl worker pool",
		Long: `Consumes crawl units from the configured queue transport until
interrupted. Intended for distributed deployments where dispatch and
workers run in separate processes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool := a.NewPool()
			pool.Start(ctx)
			<-ctx.Done()
			a.Logger.Info("shutdown signal received, draining workers")
			pool.Wait()
			return nil
		},
	}
}
