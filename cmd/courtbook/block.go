package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/spf13/cobra"
)

func newBlockCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage blocked periods (admin)",
	}
	cmd.AddCommand(newBlockAddCmd(opts))
	cmd.AddCommand(newBlockListCmd(opts))
	cmd.AddCommand(newBlockDeleteCmd(opts))
	return cmd
}

func newBlockAddCmd(opts *rootOptions) *cobra.Command {
	var (
		date    string
		weekday string
		start   string
		end     string
		fullDay bool
		reason  string
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Block a date or a recurring weekday",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &models.Block{IsFullDay: fullDay, Reason: reason}
			switch {
			case date != "" && weekday != "":
				return fmt.Errorf("use either --date or --weekday")
			case date != "":
				d, err := timeslot.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
				}
				b.Date = &d
			case weekday != "":
				wd, err := parseWeekday(weekday)
				if err != nil {
					return err
				}
				b.Recurring = true
				b.RecurringDay = wd
			default:
				return fmt.Errorf("one of --date or --weekday is required")
			}

			if !fullDay {
				var err error
				if b.StartTime, err = timeslot.Parse(start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				if b.EndTime, err = parseBoundary(end); err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				created, err := a.blocks.CreateBlock(ctx, b, opts.actor())
				if err != nil {
					return err
				}
				printBlock(cmd, created)
				return nil
			})
		},
	}

	c.Flags().StringVar(&date, "date", "", "blocked date YYYY-MM-DD")
	c.Flags().StringVar(&weekday, "weekday", "", "recurring weekday (monday..sunday)")
	c.Flags().StringVar(&start, "start", "", "start time HH:MM")
	c.Flags().StringVar(&end, "end", "", "end time HH:MM (24:00 allowed)")
	c.Flags().BoolVar(&fullDay, "full-day", false, "block the whole day")
	c.Flags().StringVar(&reason, "reason", "", "reason shown on conflicts")
	return c
}

func newBlockListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				blocks, err := a.blocks.ListBlocks(ctx)
				if err != nil {
					return err
				}
				for _, b := range blocks {
					printBlock(cmd, b)
				}
				return nil
			})
		},
	}
}

func newBlockDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <block-id>",
		Short: "Delete a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.blocks.DeleteBlock(ctx, args[0], opts.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted block %s\n", args[0])
				return nil
			})
		},
	}
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) || strings.EqualFold(d.String()[:3], s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// parseBoundary is timeslot.Parse that also accepts the end-of-day boundary.
func parseBoundary(s string) (timeslot.TimeOfDay, error) {
	if strings.TrimSpace(s) == "24:00" {
		return timeslot.Hour(24), nil
	}
	return timeslot.Parse(s)
}

func printBlock(cmd *cobra.Command, b *models.Block) {
	when := b.RecurringDay.String() + "s"
	if !b.Recurring && b.Date != nil {
		when = timeslot.FormatDate(*b.Date)
	}
	span := "full day"
	if !b.IsFullDay {
		span = fmt.Sprintf("%s-%s", b.StartTime, b.EndTime)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id=%s when=%s span=%s reason=%q\n", b.ID, when, span, b.Reason)
}
