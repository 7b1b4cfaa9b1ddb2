package main

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/dag"
)

var allPreflightChecks = []string{"config", "hosts", "ssh", "sudo", "tasks"}

type preflightOptions struct {
	ConfigPath string
	Skip       []string
}

func newPreflightCmd(app *AppContext) *cobra.Command {
	opts := preflightOptions{}

	cmd := &cobra.Command{
		Use:   "preflight [task...]",
		Short: "Run pre-execution checks (config, hosts, ssh, sudo, tasks) without running any task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreflight(app, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the task document")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "Checks to skip: config,hosts,ssh,sudo,tasks")
	cmd.MarkFlagRequired("config") //nolint:errcheck

	return cmd
}

func runPreflight(app *AppContext, opts preflightOptions, targets []string) error {
	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[s] = true
	}

	var cfg *config.Config
	var err error
	failed := false

	report := func(check string, ok bool, detail string) {
		status := "ok"
		if !ok {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("[%s] %s: %s\n", status, check, detail)
	}

	if !skip["config"] {
		cfg, err = config.ParseConfig(opts.ConfigPath)
		if err != nil {
			report("config", false, err.Error())
			return fmt.Errorf("preflight failed")
		}
		report("config", true, "parsed and validated")
	} else {
		cfg, err = config.ParseConfig(opts.ConfigPath)
		if err != nil {
			return err
		}
	}

	if !skip["tasks"] {
		unknown := unknownTargets(cfg, targets)
		if len(unknown) > 0 {
			report("tasks", false, fmt.Sprintf("unknown task(s): %v", unknown))
		} else if _, err := dag.BuildDAG(cfg.Tasks); err != nil {
			report("tasks", false, err.Error())
		} else {
			report("tasks", true, fmt.Sprintf("%d task(s), no cycles", len(cfg.Tasks)))
		}
	}

	if !skip["hosts"] {
		hosts := sortedHostnames(cfg)
		report("hosts", true, fmt.Sprintf("%d host(s) declared", len(hosts)))
	}

	if !skip["ssh"] {
		checkSSHReachability(cfg, report)
	}

	if !skip["sudo"] {
		report("sudo", true, "sudo requirement not probed (requires a live session; run `nexus run --check` to exercise it)")
	}

	if failed {
		return fmt.Errorf("preflight failed")
	}
	fmt.Println("preflight ok")
	return nil
}

func unknownTargets(cfg *config.Config, targets []string) []string {
	var unknown []string
	for _, t := range targets {
		if _, ok := cfg.Tasks[t]; !ok {
			unknown = append(unknown, t)
		}
	}
	return unknown
}

func sortedHostnames(cfg *config.Config) []string {
	names := cfg.AllHostNames()
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}

func checkSSHReachability(cfg *config.Config, report func(check string, ok bool, detail string)) {
	settings := cfg.Settings.ApplyDefaults()
	timeout := time.Duration(settings.ConnectTimeout) * time.Second

	for name, host := range cfg.Hosts {
		if name == config.LocalHost {
			continue
		}
		port := host.Port
		if port == 0 {
			port = settings.DefaultPort
		}
		addr := fmt.Sprintf("%s:%d", host.Hostname, port)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		d := net.Dialer{}
		conn, err := d.DialContext(ctx, "tcp", addr)
		cancel()
		if err != nil {
			report("ssh", false, fmt.Sprintf("%s (%s): %v", name, addr, err))
			continue
		}
		_ = conn.Close()
		report("ssh", true, fmt.Sprintf("%s (%s) reachable", name, addr))
	}
}
