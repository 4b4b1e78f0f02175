// Package cli implements the reprocessor command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/reprocessor/internal/app"
	"github.com/aevon-lab/reprocessor/internal/core/config"
	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string

	// applyMigrations overrides database.auto_migrate.
	applyMigrations bool

	// loadConfig is overridden in tests.
	loadConfig func(path string) (*config.Config, error)
	// newApp is overridden in tests.
	newApp func(ctx context.Context, cfg *config.Config) (runner, error)
}

// runner is the part of app.App the commands drive.
type runner interface {
	processRunner
	operatorRunner
	Close() error
}

func newDefaultApp(ctx context.Context, cfg *config.Config) (runner, error) {
	return app.New(ctx, cfg)
}

// NewRootCommand creates the root command of the reprocessor CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{loadConfig: config.Load, newApp: newDefaultApp})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reprocessor",
		Short:         "Group reprocessing engine",
		Long:          "Forks an issue group, resubmits its events to ingestion and retires the old group once every event came back.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "reprocessor.yaml", "path to configuration file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newAllCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newStartCommand(opts))
	cmd.AddCommand(newProgressCommand(opts))

	return cmd
}

// setup loads config, installs the logger and builds the app.
func (o *RootOptions) setup(ctx context.Context) (runner, error) {
	cfg, err := o.loadConfig(o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.applyMigrations {
		cfg.Database.AutoMigrate = true
	}
	logger.Setup(cfg.Log)
	return o.newApp(ctx, cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("[CLI] Command failed", "error", err)
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}
