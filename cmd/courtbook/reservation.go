package main

import (
	"context"
	"fmt"
	"io"

	"courtbook/internal/models"
	"courtbook/internal/service"
	"courtbook/internal/timeslot"

	"github.com/spf13/cobra"
)

func newReservationCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservation",
		Aliases: []string{"res"},
		Short:   "Create, cancel and settle reservations",
	}
	cmd.AddCommand(newReservationCreateCmd(opts))
	cmd.AddCommand(newReservationListCmd(opts))
	cmd.AddCommand(newReservationCancelCmd(opts))
	cmd.AddCommand(newReservationConfirmCmd(opts))
	cmd.AddCommand(newReservationPayCmd(opts))
	return cmd
}

func newReservationCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		owner    string
		date     string
		start    string
		duration int
		method   string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Book a slot",
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
				result, err := a.booking.CreateReservation(ctx, service.BookingRequest{
					Date:            d,
					StartTime:       st,
					DurationMinutes: duration,
					PaymentMethod:   models.PaymentMethod(method),
					OwnerID:         owner,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printReservation(out, result.Reservation)
				if result.RedirectURL != "" {
					fmt.Fprintf(out, "checkout: %s\n", result.RedirectURL)
				}
				if result.ConvertedEntry != nil {
					fmt.Fprintf(out, "converted waitlist entry %d\n", result.ConvertedEntry.ID)
				}
				return nil
			})
		},
	}

	c.Flags().StringVar(&owner, "owner", "", "owner id (defaults to --as)")
	c.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	c.Flags().StringVar(&start, "start", "", "start time HH:MM")
	c.Flags().IntVar(&duration, "duration", 60, "duration in minutes (60 or 90)")
	c.Flags().StringVar(&method, "method", string(models.PaymentGateway), "payment method: gateway or manual")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("start")
	return c
}

func newReservationListCmd(opts *rootOptions) *cobra.Command {
	var date, status string
	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := timeslot.ParseDate(date)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			var statuses []models.ReservationStatus
			if status != "" {
				st, err := models.ParseReservationStatus(status)
				if err != nil {
					return err
				}
				statuses = append(statuses, st)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				list, err := a.booking.ListReservations(ctx, d, statuses...)
				if err != nil {
					return err
				}
				for _, r := range list {
					printReservation(cmd.OutOrStdout(), r)
				}
				return nil
			})
		},
	}
	c.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	c.Flags().StringVar(&status, "status", "", "only this status (pending_payment, confirmed, cancelled)")
	_ = c.MarkFlagRequired("date")
	return c
}

func newReservationCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel a reservation as its owner or an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.reconciler.CancelReservation(ctx, args[0], opts.actor())
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newReservationConfirmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <reservation-id>",
		Short: "Record a manual payment and confirm the reservation (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.reconciler.ConfirmManualPayment(ctx, args[0], opts.actor())
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newReservationPayCmd(opts *rootOptions) *cobra.Command {
	var (
		outcome   string
		paymentID string
		amount    int64
	)

	c := &cobra.Command{
		Use:   "pay <reservation-id>",
		Short: "Apply a gateway payment outcome (approved, rejected, cancelled)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := models.ParsePaymentOutcome(outcome)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				sig := models.PaymentSignal{ReservationID: args[0], Outcome: o, GatewayPaymentID: paymentID, Amount: amount}
				if err := a.reconciler.ApplyPaymentOutcome(ctx, sig); err != nil {
					return err
				}
				res, err := a.booking.GetReservation(ctx, args[0])
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	c.Flags().StringVar(&outcome, "outcome", string(models.OutcomeApproved), "payment outcome")
	c.Flags().StringVar(&paymentID, "payment-id", "", "gateway payment id")
	c.Flags().Int64Var(&amount, "amount", 0, "amount paid in cents (defaults to the reservation price)")
	return c
}

func printReservation(w io.Writer, r *models.Reservation) {
	fmt.Fprintf(w, "id=%s owner=%s date=%s slot=%s status=%s method=%s price=%d\n",
		r.ID, r.OwnerID, timeslot.FormatDate(r.Date), r.Interval(), r.Status, r.PaymentMethod, r.TotalPrice)
}
