package main

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/domain"

	"github.com/spf13/cobra"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log (admin)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <entity-type> <entity-id>",
		Short: "List audit entries of a reservation, block, waitlist_entry or setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.actor().IsAdmin() {
				return domain.ErrNotAuthorized
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.db.ListAudit(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s action=%s actor=%s details=%q\n",
						e.CreatedAt.Format(time.RFC3339), e.Action, e.ActorID, e.Details)
				}
				return nil
			})
		},
	})
	return cmd
}
