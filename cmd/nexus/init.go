package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const initTemplate = `# Nexus task document
settings:
  default_user: root
  connect_timeout: 10
  command_timeout: 300
  max_connections: 5
  continue_on_error: false

hosts:
  web1:
    hostname: 192.0.2.10

groups:
  web:
    hosts: [web1]

tasks:
  deploy:
    on: web
    commands:
      - type: command
        cmd: "echo hello"
`

func newInitCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter task document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists", outPath)
			}
			return os.WriteFile(outPath, []byte(initTemplate), 0o644)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "nexus.yaml", "Path to write the starter document")

	return cmd
}
