package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aevon-lab/reprocessor/internal/migrations"
	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/spf13/cobra"
)

// operatorRunner backs the one-shot commands.
type operatorRunner interface {
	StartGroup(ctx context.Context, req reprocessing.StartRequest) (int64, error)
	GroupProgress(ctx context.Context, groupID int64) (reprocessing.Progress, error)
	MigrationStatus() (migrations.Status, error)
}

// StartOptions holds flags for the start command.
type StartOptions struct {
	*RootOptions
	ProjectID       int64
	GroupID         int64
	RemainingEvents string
	MaxEvents       int64
}

func newStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StartOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start reprocessing a group",
		Long: `Fork the group and enqueue its group job.

Example:
  reprocessor start --project 1 --group 100 --remaining-events delete
  reprocessor start --project 1 --group 100 --max-events 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := reprocessing.StartRequest{
				ProjectID:       opts.ProjectID,
				GroupID:         opts.GroupID,
				RemainingEvents: opts.RemainingEvents,
			}
			if cmd.Flags().Changed("max-events") {
				req.MaxEvents = &opts.MaxEvents
			}
			return runOneShot(opts.RootOptions, func(ctx context.Context, r runner) error {
				newGroupID, err := r.StartGroup(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "new_group_id=%d\n", newGroupID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&opts.ProjectID, "project", 0, "project id (required)")
	cmd.Flags().Int64Var(&opts.GroupID, "group", 0, "group id (required)")
	cmd.Flags().StringVar(&opts.RemainingEvents, "remaining-events", string(reprocessing.RemainingEventsKeep), "what happens to events beyond --max-events (keep|delete)")
	cmd.Flags().Int64Var(&opts.MaxEvents, "max-events", 0, "reprocess at most this many of the newest events")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func newProgressCommand(opts *RootOptions) *cobra.Command {
	var groupID int64

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Print the pending count and info of a reprocessing group as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(opts, func(ctx context.Context, r runner) error {
				progress, err := r.GroupProgress(ctx, groupID)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(progress)
			})
		},
	}

	cmd.Flags().Int64Var(&groupID, "group", 0, "group id (required)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		Long:  "Apply pending migrations regardless of database.auto_migrate, then print the resulting version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.applyMigrations = true
			return runOneShot(opts, func(ctx context.Context, r runner) error {
				status, err := r.MigrationStatus()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t empty=%t\n", status.Version, status.Dirty, status.Empty)
				return nil
			})
		},
	}
}

const oneShotTimeout = 30 * time.Second

func runOneShot(opts *RootOptions, fn func(ctx context.Context, r runner) error) error {
	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	r, err := opts.setup(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	return fn(ctx, r)
}
