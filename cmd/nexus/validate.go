package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexus-fleet/nexus/internal/config"
)

func newValidateCmd(app *AppContext) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a config without executing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.ParseConfig(configPath); err != nil {
				return err
			}
			fmt.Println("config is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the task document")
	cmd.MarkFlagRequired("config") //nolint:errcheck

	return cmd
}
