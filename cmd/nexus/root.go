package main

import (
	"github.com/spf13/cobra"

	"github.com/nexus-fleet/nexus/internal/logger"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "nexus",
		Short:         "Nexus orchestrates SSH fleets from a declarative task document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.verbose {
				app.Logger = logger.New(logger.Options{Level: "debug", HumanReadable: true, Component: "nexus"})
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newRunCmd(app, flags))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newValidateCmd(app))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newPreflightCmd(app))

	return cmd
}
