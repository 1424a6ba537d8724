package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stratplan/pkg/config"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Subscription entitlement service for strategic planning workspaces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "load environment from these files instead of ./.env")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newPlansCmd(),
	)
	return root
}
