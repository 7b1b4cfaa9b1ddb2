package resource

import (
	"context"
	"time"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/handlerqueue"
	"github.com/nexus-fleet/nexus/internal/predicate"
	"github.com/nexus-fleet/nexus/internal/provider"
)

// Executor runs resources against a provider registry, session, and
// handler queue.
type Executor struct {
	Registry *provider.Registry
	Handlers *handlerqueue.Queue
}

// NewExecutor returns an Executor wired to registry and handlers.
func NewExecutor(registry *provider.Registry, handlers *handlerqueue.Queue) *Executor {
	return &Executor{Registry: registry, Handlers: handlers}
}

// Execute runs one resource and produces exactly one Result, per spec §4.D's
// five-step algorithm.
func (e *Executor) Execute(ctx context.Context, res config.Resource, session provider.Session, rc provider.Context) Result {
	start := time.Now()
	name := res.Describe()

	if !predicate.Eval(res.When, rc.Facts.AsMap()) {
		r := timedResult(start, StatusSkipped, "condition not met", nil)
		r.ResourceName = name
		return r
	}

	prov, err := e.Registry.ProviderFor(res.Kind, rc.Facts)
	if err != nil {
		r := timedResult(start, StatusFailed, "unsupported OS: "+err.Error(), err)
		r.ResourceName = name
		return r
	}

	current, err := prov.Check(ctx, res, session, rc)
	if err != nil {
		r := timedResult(start, StatusFailed, "check failed: "+err.Error(), err)
		r.ResourceName = name
		return r
	}

	if res.Kind == config.ResourceCommand && current == "skip" {
		r := timedResult(start, StatusSkipped, "guard condition not met", nil)
		r.ResourceName = name
		return r
	}

	diff, err := prov.Diff(ctx, res, current, rc)
	if err != nil {
		r := timedResult(start, StatusFailed, "diff failed: "+err.Error(), err)
		r.ResourceName = name
		return r
	}

	if !diff.Changed {
		r := timedResult(start, StatusOK, "no change", nil)
		r.ResourceName = name
		r.Diff = diff
		return r
	}

	if rc.CheckMode {
		r := timedResult(start, StatusChanged, "would change", nil)
		r.ResourceName = name
		r.Diff = diff
		r.Notify = res.Notify
		return r
	}

	applied, err := prov.Apply(ctx, res, diff, session, rc)
	if err != nil {
		r := timedResult(start, StatusFailed, "apply failed: "+err.Error(), err)
		r.ResourceName = name
		r.Diff = applied
		return r
	}

	r := timedResult(start, StatusChanged, "applied", nil)
	r.ResourceName = name
	r.Diff = applied

	if res.Notify != "" && e.Handlers != nil {
		e.Handlers.Enqueue(res.Notify, handlerqueue.End)
		r.Notify = res.Notify
	}

	return r
}

// ExecuteAll runs resources sequentially, stopping at the first failed
// Result unless continueOnError is true. It always returns the Results
// gathered so far.
func (e *Executor) ExecuteAll(ctx context.Context, resources []config.Resource, session provider.Session, rc provider.Context, continueOnError bool) []Result {
	results := make([]Result, 0, len(resources))
	for _, res := range resources {
		r := e.Execute(ctx, res, session, rc)
		results = append(results, r)
		if r.Status == StatusFailed && !continueOnError {
			break
		}
	}
	return results
}
