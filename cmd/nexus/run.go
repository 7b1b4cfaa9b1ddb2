package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/pipeline"
)

type runOptions struct {
	ConfigPath      string
	ParallelLimit   int
	ContinueOnError bool
	CheckMode       bool
}

func newRunCmd(app *AppContext, root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Execute the named tasks, and everything they transitively depend on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(app, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the task document")
	cmd.Flags().IntVar(&opts.ParallelLimit, "parallel-limit", 0, "Max tasks launched concurrently per phase (0 = config default)")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "Keep running remaining tasks after a failure")
	cmd.Flags().BoolVar(&opts.CheckMode, "check", false, "Check and diff resources without applying them (command, upload, download, template and wait_for steps still run)")
	cmd.MarkFlagRequired("config") //nolint:errcheck

	return cmd
}

func runRun(app *AppContext, opts runOptions, targets []string) error {
	cfg, err := config.ParseConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	p, pool := app.buildPipeline(cfg)
	defer pool.CloseAll()

	result, err := p.Run(context.Background(), targets, pipeline.Options{
		ParallelLimit:   opts.ParallelLimit,
		ContinueOnError: opts.ContinueOnError,
		CheckMode:       opts.CheckMode,
	})
	if err != nil {
		return err
	}

	fmt.Printf("status=%s tasks_run=%d succeeded=%d failed=%d duration_ms=%d\n",
		result.Status, result.TasksRun, result.TasksSucceeded, result.TasksFailed, result.DurationMS)
	if result.AbortedAt != "" {
		fmt.Printf("aborted_at=%s\n", result.AbortedAt)
	}

	if result.Status != pipeline.StatusOK {
		return fmt.Errorf("pipeline completed with errors")
	}
	return nil
}
