package main

import (
	"context"
	"fmt"
	"strconv"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and requeue calendar sync tasks (admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.actor().IsAdmin() {
				return domain.ErrNotAuthorized
			}
			return nil
		},
	}
	cmd.AddCommand(newSyncFailedCmd(opts))
	cmd.AddCommand(newSyncShowCmd(opts))
	cmd.AddCommand(newSyncRetryCmd(opts))
	return cmd
}

func newSyncFailedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List tasks that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				tasks, err := a.db.GetFailedSyncTasks(ctx)
				if err != nil {
					return err
				}
				for i := range tasks {
					printSyncTask(cmd, &tasks[i])
				}
				return nil
			})
		},
	}
}

func newSyncShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one sync task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				task, err := a.db.GetSyncTask(ctx, id)
				if err != nil {
					return err
				}
				printSyncTask(cmd, task)
				return nil
			})
		},
	}
}

func newSyncRetryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Put a failed task back in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				task, err := a.db.GetSyncTask(ctx, id)
				if err != nil {
					return err
				}
				if task.Status != models.SyncStatusFailed {
					return fmt.Errorf("sync task %d is %s, only failed tasks can be retried", id, task.Status)
				}
				if err := a.db.UpdateSyncTaskStatus(ctx, id, models.SyncStatusPending, "", nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued sync task %d\n", id)
				return nil
			})
		},
	}
}

func printSyncTask(cmd *cobra.Command, t *models.SyncTask) {
	lastErr := "-"
	if t.LastError != nil && *t.LastError != "" {
		lastErr = *t.LastError
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id=%d type=%s reservation=%s status=%s retries=%d error=%q\n",
		t.ID, t.TaskType, t.ReservationID, t.Status, t.RetryCount, lastErr)
}
