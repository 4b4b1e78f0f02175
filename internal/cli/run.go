package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

type processRunner interface {
	Serve(ctx context.Context) error
	RunWorker(ctx context.Context) error
	RunAll(ctx context.Context) error
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the reprocessing HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, "serve", func(r runner, ctx context.Context) error { return r.Serve(ctx) })
		},
	}
}

func newWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume reprocessing jobs from the job stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, "worker", func(r runner, ctx context.Context) error { return r.RunWorker(ctx) })
		},
	}
}

func newAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the API, the worker and the monitor in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, "all", func(r runner, ctx context.Context) error { return r.RunAll(ctx) })
		},
	}
}

// runProcess runs fn until a signal arrives. Cancellation is a clean exit.
func runProcess(opts *RootOptions, name string, fn func(r runner, ctx context.Context) error) error {
	ctx, stop := signalContext()
	defer stop()

	r, err := opts.setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			slog.Error("[CLI] Shutdown finished with errors", "error", err)
		}
	}()

	slog.Info("[CLI] Starting", "command", name)
	err = fn(r, ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("[CLI] Shutdown complete", "command", name)
	return err
}
