package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/models"
	"courtbook/internal/service"
	"courtbook/internal/timeslot"

	"github.com/spf13/cobra"
)

func newWaitlistCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Join and manage the waitlist",
	}
	cmd.AddCommand(newWaitlistJoinCmd(opts))
	cmd.AddCommand(newWaitlistListCmd(opts))
	cmd.AddCommand(newWaitlistNotifyCmd(opts))
	cmd.AddCommand(newWaitlistDeleteCmd(opts))
	return cmd
}

func newWaitlistJoinCmd(opts *rootOptions) *cobra.Command {
	var (
		owner    string
		date     string
		start    string
		duration int
	)

	c := &cobra.Command{
		Use:   "join",
		Short: "Wait for a slot to free up",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := timeslot.ParseDate(date)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			st, err := timeslot.Parse(start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			if owner == "" {
				owner = opts.actorID
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				entry, created, err := a.waitlist.Join(ctx, service.WaitlistRequest{
					OwnerID:         owner,
					Date:            d,
					StartTime:       st,
					DurationMinutes: duration,
				})
				if err != nil {
					return err
				}
				if !created {
					fmt.Fprintln(cmd.OutOrStdout(), "already on the waitlist")
				}
				printEntry(cmd, entry)
				return nil
			})
		},
	}

	c.Flags().StringVar(&owner, "owner", "", "owner id (defaults to --as)")
	c.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	c.Flags().StringVar(&start, "start", "", "start time HH:MM")
	c.Flags().IntVar(&duration, "duration", 60, "duration in minutes (60 or 90)")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("start")
	return c
}

func newWaitlistListCmd(opts *rootOptions) *cobra.Command {
	var (
		date   string
		owner  string
		status string
		active bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List waitlist entries in FIFO order",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := database.WaitlistFilter{OwnerID: owner}
			if status != "" {
				st, err := models.ParseWaitlistStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			if date != "" {
				d, err := timeslot.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
				}
				filter.Date = &d
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.waitlist.ListEntries(ctx, filter, opts.actor())
				if err != nil {
					return err
				}
				for _, e := range entries {
					if active && e.Status.Terminal() {
						continue
					}
					printEntry(cmd, e)
				}
				return nil
			})
		},
	}

	c.Flags().StringVar(&date, "date", "", "filter by date YYYY-MM-DD")
	c.Flags().StringVar(&owner, "owner", "", "filter by owner id")
	c.Flags().StringVar(&status, "status", "", "filter by status (waiting, notified, converted, expired)")
	c.Flags().BoolVar(&active, "active", false, "hide converted and expired entries")
	return c
}

func newWaitlistNotifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <entry-id>",
		Short: "Offer the slot to a waiting entry (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				entry, err := a.waitlist.AdminNotify(ctx, id, opts.actor())
				if err != nil {
					return err
				}
				printEntry(cmd, entry)
				return nil
			})
		},
	}
}

func newWaitlistDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Remove a waitlist entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.waitlist.DeleteEntry(ctx, id, opts.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted waitlist entry %d\n", id)
				return nil
			})
		},
	}
}

func printEntry(cmd *cobra.Command, e *models.WaitlistEntry) {
	expires := "-"
	if e.ExpiresAt != nil {
		expires = e.ExpiresAt.Format(time.RFC3339)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id=%d owner=%s date=%s start=%s duration=%d status=%s expires=%s\n",
		e.ID, e.OwnerID, timeslot.FormatDate(e.DesiredDate), e.DesiredStart, e.DurationMinutes, e.Status, expires)
}
