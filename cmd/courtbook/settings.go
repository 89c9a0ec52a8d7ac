package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and update booking settings",
	}
	cmd.AddCommand(newSettingsGetCmd(opts))
	cmd.AddCommand(newSettingsSetCmd(opts))
	return cmd
}

func newSettingsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					v, err := a.settings.Get(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, v)
					return nil
				}

				list, err := a.settings.List(ctx)
				if err != nil {
					return err
				}
				for _, s := range list {
					fmt.Fprintf(out, "%s=%s\n", s.Key, s.Value)
				}
				return nil
			})
		},
	}
}

func newSettingsSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update a setting (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.settings.Set(ctx, args[0], args[1], opts.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", args[0], args[1])
				return nil
			})
		},
	}
}
