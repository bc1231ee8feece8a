package main

import (
	"github.com/spf13/cobra"
)

var configFile string

// NewRootCmd creates the root command for the authsys CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authsys",
		Short:         "AuthSystem authentication service",
		Long:          `AuthSystem issues JWT access tokens and rotating refresh tokens, with optional emailed two-factor codes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
