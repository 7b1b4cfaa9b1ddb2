package taskrunner

import (
	"context"
	"sort"
	"time"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/provider"
)

// RunRolling implements the rolling strategy (spec §4.I): the host set is
// chunked into batches; each batch runs the task's regular (non-WaitFor)
// steps in parallel, then every health-check step must pass against every
// host in the batch before the next batch starts.
func (r *Runner) RunRolling(ctx context.Context, task config.Task, hosts []string, opts RunOptions) TaskResult {
	start := time.Now()
	result := TaskResult{TaskName: task.Name}

	regular, healthChecks := partitionSteps(task.Commands)
	batchSize := task.EffectiveBatchSize()
	timeout := durationOr(task.Timeout, 0)

	var collected []HostResult

batchLoop:
	for _, batch := range chunk(hosts, batchSize) {
		batchTask := task
		batchTask.Commands = regular

		batchResults := make([]HostResult, 0, len(batch))
		for _, hr := range r.runBatch(ctx, batchTask, batch, timeout, opts) {
			batchResults = append(batchResults, hr)
		}

		anyHealthFailed := false
		for i, host := range batch {
			for _, hc := range healthChecks {
				outcome := r.runHealthCheckOnHost(ctx, host, hc, timeout)
				batchResults[i].Commands = append(batchResults[i].Commands, outcome)
				batchResults[i].recompute()
				if outcome.Status == CommandError {
					anyHealthFailed = true
				}
			}
		}

		collected = append(collected, batchResults...)

		if anyHealthFailed && !opts.ContinueOnError {
			break batchLoop
		}
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].HostName < collected[j].HostName })
	result.HostResults = collected
	result.DurationMS = time.Since(start).Milliseconds()
	result.recompute()
	return result
}

func (r *Runner) runBatch(ctx context.Context, task config.Task, hosts []string, timeout time.Duration, opts RunOptions) []HostResult {
	out := make([]HostResult, len(hosts))
	done := make(chan int, len(hosts))
	for i, host := range hosts {
		i, host := i, host
		go func() {
			out[i] = r.runHost(ctx, task, host, timeout, opts)
			done <- i
		}()
	}
	for range hosts {
		<-done
	}
	return out
}

func (r *Runner) runHealthCheckOnHost(ctx context.Context, host string, step config.Step, timeout time.Duration) CommandOutcome {
	hostCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		hostCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var outcome CommandOutcome
	err := r.deps.Sessions.WithSession(hostCtx, host, func(session provider.Session) (bool, error) {
		outcome = runWaitFor(hostCtx, step.WaitFor, session)
		return false, nil
	})
	if err != nil && outcome.Cmd == "" {
		outcome = errorOutcome("wait_for "+step.WaitFor.Target, err, time.Now())
	}

	return outcome
}

func partitionSteps(steps []config.Step) (regular []config.Step, healthChecks []config.Step) {
	for _, s := range steps {
		if s.Kind == config.StepWaitFor {
			healthChecks = append(healthChecks, s)
		} else {
			regular = append(regular, s)
		}
	}
	return
}

func chunk(hosts []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for i := 0; i < len(hosts); i += size {
		end := i + size
		if end > len(hosts) {
			end = len(hosts)
		}
		out = append(out, hosts[i:end])
	}
	return out
}
