package main

import (
	"context"
	"fmt"
	"os"

	"courtbook/internal/models"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

type rootOptions struct {
	configPath string
	actorID    string
	admin      bool
}

func (o *rootOptions) actor() models.Actor {
	role := models.RoleUser
	if o.admin {
		role = models.RoleAdmin
	}
	return models.Actor{ID: o.actorID, Role: role}
}

// withApp loads config, wires the services and runs fn with them.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, closer, err := loadConfigAndLogger(o.configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger, closer)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "courtbook",
		Short:         "Court slot availability and booking lifecycle scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.actorID, "as", "admin", "owner id performing the action")
	root.PersistentFlags().BoolVar(&opts.admin, "admin", false, "act with the admin role")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newReservationCmd(opts))
	root.AddCommand(newBlockCmd(opts))
	root.AddCommand(newWaitlistCmd(opts))
	root.AddCommand(newSettingsCmd(opts))
	root.AddCommand(newAuditCmd(opts))
	root.AddCommand(newSyncCmd(opts))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "courtbook %s (%s)\n", Version, CommitSHA)
		},
	}
}
