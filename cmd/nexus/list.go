package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nexus-fleet/nexus/internal/config"
)

func newListCmd(app *AppContext) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks, hosts, groups, and handlers defined in a config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the task document")
	cmd.MarkFlagRequired("config") //nolint:errcheck

	return cmd
}

func runList(configPath string) error {
	cfg, err := config.ParseConfig(configPath)
	if err != nil {
		return err
	}

	printNames("Tasks", keysOfTasks(cfg.Tasks))
	printNames("Hosts", cfg.AllHostNames())
	printNames("Groups", keysOfGroups(cfg.Groups))
	printNames("Handlers", keysOfHandlers(cfg.Handlers))
	return nil
}

func printNames(label string, names []string) {
	fmt.Println(label + ":")
	sort.Strings(names)
	for _, name := range names {
		fmt.Println("  " + name)
	}
}

func keysOfTasks(m map[string]config.Task) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfGroups(m map[string]config.HostGroup) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfHandlers(m map[string]config.Handler) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
