package taskrunner

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/facts"
	"github.com/nexus-fleet/nexus/internal/provider"
	"github.com/nexus-fleet/nexus/internal/resource"
	"github.com/nexus-fleet/nexus/internal/retry"
	"github.com/nexus-fleet/nexus/internal/telemetry"
)

// SessionProvider obtains a provider.Session for a host and runs fn with
// it, reporting session-level failures so the caller (the pool) can evict
// the session — the same shape as sshpool.Pool.WithConnection. PoolSessions
// satisfies it by adapting *sshpool.Pool and adding the local shortcut.
type SessionProvider interface {
	WithSession(ctx context.Context, host string, fn func(provider.Session) (sessionFailed bool, err error)) error
}

// Deps bundles the collaborators a Runner needs: the connection source,
// the fact gatherer, and the resource executor (which already carries the
// provider registry and the run's handler queue).
type Deps struct {
	Sessions SessionProvider
	Facts    *facts.Gatherer
	Executor *resource.Executor
	Settings config.Settings
	Emitter  telemetry.Emitter
}

// Runner executes one Task against its resolved host set.
type Runner struct {
	deps Deps
}

// New returns a Runner wired to deps.
func New(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// RunOptions carries the per-run flags a Runner needs below the Pipeline
// boundary: whether a failed step aborts its host's remaining steps, and
// whether resources run in check mode (check+diff, no apply) per spec
// §4.D step 5.
type RunOptions struct {
	ContinueOnError bool
	CheckMode       bool
}

// Run executes task against hosts under its EffectiveStrategy, per spec
// §4.F. Parallel/serial apply the same per-host step loop; rolling is
// handled by RunRolling.
func (r *Runner) Run(ctx context.Context, task config.Task, hosts []string, opts RunOptions) TaskResult {
	start := time.Now()
	result := TaskResult{TaskName: task.Name}

	if task.EffectiveStrategy() == config.StrategyRolling && len(hosts) > 1 {
		return r.RunRolling(ctx, task, hosts, opts)
	}

	timeout := durationOr(task.Timeout, 0)
	limit := r.deps.Settings.ParallelLimit
	if limit <= 0 {
		limit = 10
	}

	var (
		mu      sync.Mutex
		results []HostResult
	)

	runHost := func(host string) {
		hr := r.runHost(ctx, task, host, timeout, opts)
		mu.Lock()
		results = append(results, hr)
		mu.Unlock()
	}

	switch task.EffectiveStrategy() {
	case config.StrategySerial:
		for _, host := range hosts {
			runHost(host)
		}
	default: // parallel
		sem := semaphore.NewWeighted(int64(limit))
		var wg sync.WaitGroup
		for _, host := range hosts {
			host := host
			wg.Add(1)
			_ = sem.Acquire(ctx, 1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				runHost(host)
			}()
		}
		wg.Wait()
	}

	sort.Slice(results, func(i, j int) bool { return results[i].HostName < results[j].HostName })
	result.HostResults = results
	result.DurationMS = time.Since(start).Milliseconds()
	result.recompute()
	return result
}

// runHost runs task's full step list on one host, bounded by the task's
// own timeout, and returns its HostResult.
func (r *Runner) runHost(ctx context.Context, task config.Task, host string, timeout time.Duration, opts RunOptions) HostResult {
	hr := HostResult{HostName: host}

	hostCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		hostCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := r.deps.Sessions.WithSession(hostCtx, host, func(session provider.Session) (bool, error) {
		f, ferr := r.hostFacts(hostCtx, host, session)
		if ferr != nil {
			hr.Commands = append(hr.Commands, errorOutcome("facts", ferr, time.Now()))
			hr.recompute()
			return false, ferr
		}

		rc := provider.Context{Facts: f, HostID: host, CheckMode: opts.CheckMode}

		for _, step := range task.Commands {
			select {
			case <-hostCtx.Done():
				hr.Commands = append(hr.Commands, CommandOutcome{Cmd: "(timeout)", Status: CommandError, Output: "timeout", DurationMS: 0})
				hr.recompute()
				return false, nil
			default:
			}

			outcome := r.runStep(hostCtx, step, session, rc)
			hr.Commands = append(hr.Commands, outcome)
			hr.recompute()

			if outcome.Status == CommandError && !opts.ContinueOnError {
				break
			}
		}
		return false, nil
	})

	if err != nil && len(hr.Commands) == 0 {
		hr.Commands = append(hr.Commands, errorOutcome("connect", err, time.Now()))
	}
	hr.recompute()
	return hr
}

func (r *Runner) hostFacts(ctx context.Context, host string, session provider.Session) (facts.Facts, error) {
	if host == config.LocalHost {
		return r.deps.Facts.Local()
	}
	return r.deps.Facts.Remote(host, func(cmd string) (string, error) {
		res, err := session.Exec(ctx, cmd, provider.ExecOptions{})
		if err != nil {
			return "", err
		}
		return res.Output, nil
	})
}

func (r *Runner) runStep(ctx context.Context, step config.Step, session provider.Session, rc provider.Context) CommandOutcome {
	switch step.Kind {
	case config.StepCommand:
		return r.runCommand(ctx, step.Command, session, rc.HostID)
	case config.StepResource:
		result := r.deps.Executor.Execute(ctx, *step.Resource, session, rc)
		return resourceToOutcome(result)
	case config.StepUpload:
		return runUpload(ctx, step.Upload, session)
	case config.StepDownload:
		return runDownload(ctx, step.Download, session)
	case config.StepTemplate:
		return runTemplate(ctx, step.Template, session)
	case config.StepWaitFor:
		return runWaitFor(ctx, step.WaitFor, session)
	default:
		return CommandOutcome{Cmd: string(step.Kind), Status: CommandError, Output: "unknown step kind"}
	}
}

func (r *Runner) runCommand(ctx context.Context, cmd *config.Command, session provider.Session, host string) CommandOutcome {
	start := time.Now()
	attempts := 0

	r.emitter().Emit(ctx, telemetry.Event{Type: telemetry.EventCommandStart, Fields: map[string]any{
		"cmd": cmd.Cmd, "host": host,
	}})

	opts := provider.ExecOptions{Cwd: cmd.Cwd, Env: cmd.Env}
	if cmd.Timeout > 0 {
		opts.Timeout = time.Duration(cmd.Timeout) * time.Millisecond
	}

	var last provider.ExecResult
	err := retry.Do(ctx, retry.Policy{
		Attempts: cmd.Retries,
		Delay:    time.Duration(cmd.RetryDelay) * time.Millisecond,
	}, func(ctx context.Context) error {
		attempts++
		var runErr error
		if cmd.Sudo {
			last, runErr = session.ExecSudo(ctx, cmd.Cmd, opts)
		} else {
			last, runErr = session.Exec(ctx, cmd.Cmd, opts)
		}
		if runErr != nil {
			return runErr
		}
		if !last.Ok() {
			return commandExitError{exitCode: last.ExitCode}
		}
		return nil
	})

	status := CommandOK
	if err != nil {
		status = CommandError
	}

	durationMS := time.Since(start).Milliseconds()
	r.emitter().Emit(ctx, telemetry.Event{Type: telemetry.EventCommandStop, Fields: map[string]any{
		"cmd": cmd.Cmd, "host": host, "exit_code": last.ExitCode, "attempts": attempts, "duration_ms": durationMS,
	}})

	return CommandOutcome{
		Cmd:        cmd.Cmd,
		Status:     status,
		Output:     last.Output,
		ExitCode:   last.ExitCode,
		Attempts:   attempts,
		DurationMS: durationMS,
	}
}

func (r *Runner) emitter() telemetry.Emitter {
	if r.deps.Emitter == nil {
		return telemetry.NopEmitter{}
	}
	return r.deps.Emitter
}

type commandExitError struct{ exitCode int }

func (e commandExitError) Error() string { return "non-zero exit" }

func resourceToOutcome(r resource.Result) CommandOutcome {
	status := CommandOK
	switch r.Status {
	case resource.StatusChanged:
		status = CommandChanged
	case resource.StatusSkipped:
		status = CommandSkipped
	case resource.StatusFailed:
		status = CommandError
	}
	return CommandOutcome{
		Cmd:        r.ResourceName,
		Status:     status,
		Output:     r.Message,
		DurationMS: r.DurationMS,
	}
}
