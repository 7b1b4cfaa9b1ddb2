package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/dag"
	"github.com/nexus-fleet/nexus/internal/facts"
	"github.com/nexus-fleet/nexus/internal/handlerqueue"
	"github.com/nexus-fleet/nexus/internal/provider"
	"github.com/nexus-fleet/nexus/internal/resource"
	"github.com/nexus-fleet/nexus/internal/taskrunner"
	"github.com/nexus-fleet/nexus/internal/telemetry"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

const defaultHandlerTimeoutMS = 5 * 60 * 1000

// Deps bundles the collaborators a Pipeline needs to build Task Runners.
type Deps struct {
	Sessions taskrunner.SessionProvider
	Facts    *facts.Gatherer
	Registry *provider.Registry
	Emitter  telemetry.Emitter
}

// Options controls one Run, mirroring spec §4.G's `opts` and the CLI
// surface named in §6 (parallel_limit, continue_on_error, check_mode).
type Options struct {
	ParallelLimit   int
	ContinueOnError bool
	CheckMode       bool
}

// Pipeline drives a full run over one Config, owning the lifecycle state
// machine described in spec §4.G.
type Pipeline struct {
	cfg   *config.Config
	deps  Deps
	state State
}

// New returns a Pipeline over cfg, wired to deps.
func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Emitter == nil {
		deps.Emitter = telemetry.NopEmitter{}
	}
	return &Pipeline{cfg: cfg, deps: deps, state: StateInit}
}

// Run executes targetTasks and everything they transitively depend on,
// per the 8-step algorithm in spec §4.G.
func (p *Pipeline) Run(ctx context.Context, targetTasks []string, opts Options) (Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	graph, required, err := p.plan(targetTasks)
	if err != nil {
		p.deps.Emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventPipelineException, Fields: map[string]any{
			"run_id": runID, "error": err.Error(),
		}})
		return Result{}, err
	}
	p.transition(StatePlanned)

	p.deps.Emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventPipelineStart, Fields: map[string]any{
		"run_id":  runID,
		"targets": targetTasks,
	}})

	p.transition(StateRunning)

	limit := opts.ParallelLimit
	if limit <= 0 {
		limit = p.cfg.Settings.ApplyDefaults().ParallelLimit
	}
	if p.cfg.Settings.ContinueOnError {
		opts.ContinueOnError = true
	}

	queue := handlerqueue.New()
	executor := resource.NewExecutor(p.deps.Registry, queue)
	runner := taskrunner.New(taskrunner.Deps{
		Sessions: p.deps.Sessions,
		Facts:    p.deps.Facts,
		Executor: executor,
		Settings: p.cfg.Settings.ApplyDefaults(),
		Emitter:  p.deps.Emitter,
	})

	result := Result{}
	abortedAt := ""

phaseLoop:
	for _, phase := range filterPhases(graph.Phases, required) {
		names := append([]string(nil), phase...)
		sort.Strings(names)

		phaseResults := p.runPhase(ctx, runner, names, limit, opts)
		result.TaskResults = append(result.TaskResults, phaseResults...)

		var firstFailed string
		for _, name := range names {
			for _, tr := range phaseResults {
				if tr.TaskName == name && tr.Status != "ok" {
					if firstFailed == "" {
						firstFailed = name
					}
				}
			}
		}

		if firstFailed != "" && !opts.ContinueOnError {
			p.transition(StateAborting)
			abortedAt = firstFailed
			break phaseLoop
		}
	}

	handlerResults := p.runHandlers(ctx, runner, queue, opts)
	result.RunID = runID
	result.HandlerResults = handlerResults
	result.AbortedAt = abortedAt
	result.DurationMS = time.Since(start).Milliseconds()
	result.recompute()

	p.transition(StateCompleted)
	p.deps.Emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventPipelineStop, Fields: map[string]any{
		"run_id":      runID,
		"status":      string(result.Status),
		"duration_ms": result.DurationMS,
		"aborted_at":  result.AbortedAt,
	}})

	return result, nil
}

// DryRun performs steps 1-3 of Run only: validation, DAG construction, and
// phase derivation, returning the plan without executing anything.
func (p *Pipeline) DryRun(targetTasks []string) (Plan, error) {
	graph, required, err := p.plan(targetTasks)
	if err != nil {
		return Plan{}, err
	}
	phases := filterPhases(graph.Phases, required)

	reqNames := make([]string, 0, len(required))
	for name := range required {
		reqNames = append(reqNames, name)
	}
	sort.Strings(reqNames)

	return Plan{Phases: phases, RequiredTask: reqNames}, nil
}

// plan runs spec §4.G steps 1-3: validate target names, build the DAG,
// detect cycles, and compute the required-task set.
func (p *Pipeline) plan(targetTasks []string) (*dag.Graph, map[string]bool, error) {
	var unknown []string
	for _, name := range targetTasks {
		if _, ok := p.cfg.Tasks[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, nil, streamyerrors.NewUnknownTasksError(unknown)
	}

	graph, err := dag.BuildDAG(p.cfg.Tasks)
	if err != nil {
		return nil, nil, err
	}
	p.transition(StateValidated)

	required := make(map[string]bool)
	for _, name := range targetTasks {
		for _, dep := range graph.SubgraphFor(name) {
			required[dep] = true
		}
	}

	return graph, required, nil
}

// runPhase launches every task in names concurrently, bounded by limit,
// and returns their TaskResults in name order.
func (p *Pipeline) runPhase(ctx context.Context, runner *taskrunner.Runner, names []string, limit int, opts Options) []taskrunner.TaskResult {
	sem := semaphore.NewWeighted(int64(limit))
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []taskrunner.TaskResult
	)

	for _, name := range names {
		task := p.cfg.Tasks[name]
		_ = sem.Acquire(ctx, 1)
		wg.Add(1)
		go func(task config.Task) {
			defer wg.Done()
			defer sem.Release(1)
			tr := p.runOneTask(ctx, runner, task, opts)
			mu.Lock()
			results = append(results, tr)
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].TaskName < results[j].TaskName })
	return results
}

func (p *Pipeline) runOneTask(ctx context.Context, runner *taskrunner.Runner, task config.Task, opts Options) taskrunner.TaskResult {
	hosts, err := taskrunner.ResolveHosts(p.cfg, task.On)
	if err != nil {
		p.deps.Emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventTaskException, Fields: map[string]any{"task": task.Name, "error": err.Error()}})
		return taskrunner.TaskResult{TaskName: task.Name, Status: "error"}
	}
	return p.runOneTaskOnHosts(ctx, runner, task, hosts, opts)
}

func (p *Pipeline) runOneTaskOnHosts(ctx context.Context, runner *taskrunner.Runner, task config.Task, hosts []string, opts Options) taskrunner.TaskResult {
	p.deps.Emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventTaskStart, Fields: map[string]any{"task": task.Name}})

	result := runner.Run(ctx, task, hosts, taskrunner.RunOptions{ContinueOnError: opts.ContinueOnError, CheckMode: opts.CheckMode})

	p.deps.Emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventTaskStop, Fields: map[string]any{
		"task": task.Name, "status": result.Status, "duration_ms": result.DurationMS,
	}})
	return result
}

// runHandlers flushes queue and runs each pending handler as a synthetic
// task targeting every host in Config, strategy parallel, per spec §4.G
// step 6.
func (p *Pipeline) runHandlers(ctx context.Context, runner *taskrunner.Runner, queue *handlerqueue.Queue, opts Options) []taskrunner.TaskResult {
	names := queue.Flush()
	if len(names) == 0 {
		return nil
	}

	hosts := taskrunner.AllHostsSorted(p.cfg)
	timeoutMS := defaultHandlerTimeoutMS
	if p.cfg.Settings.CommandTimeout > 0 {
		timeoutMS = p.cfg.Settings.CommandTimeout * 1000
	}

	results := make([]taskrunner.TaskResult, 0, len(names))
	for _, name := range names {
		handler, ok := p.cfg.Handlers[name]
		if !ok {
			continue
		}
		task := handlerTask(name, handler, timeoutMS)
		results = append(results, p.runOneTaskOnHosts(ctx, runner, task, hosts, opts))
	}
	return results
}

func handlerTask(name string, handler config.Handler, timeoutMS int) config.Task {
	steps := make([]config.Step, len(handler.Commands))
	for i := range handler.Commands {
		cmd := handler.Commands[i]
		steps[i] = config.Step{Kind: config.StepCommand, Command: &cmd}
	}
	return config.Task{
		Name:     name,
		On:       handlerAllHostsMarker,
		Commands: steps,
		Strategy: config.StrategyParallel,
		Timeout:  timeoutMS,
	}
}

// handlerAllHostsMarker never reaches ResolveHosts: runHandlers passes an
// explicit host list to runOneTaskOnHosts, but config.Task.On must still
// be non-empty to satisfy validation if a handler task were ever
// round-tripped through config.
const handlerAllHostsMarker = "*"

// filterPhases keeps only the required task names in each of graph's
// phases, preserving order and dropping phases left empty - a phase with
// no required members contributes nothing to execution.
func filterPhases(phases [][]string, required map[string]bool) [][]string {
	out := make([][]string, 0, len(phases))
	for _, phase := range phases {
		var kept []string
		for _, name := range phase {
			if required[name] {
				kept = append(kept, name)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
