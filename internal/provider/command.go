package provider

import (
	"context"

	"github.com/nexus-fleet/nexus/internal/config"
)

// commandProvider wraps a shell invocation with the Command-resource guard
// semantics: creates/removes/unless/onlyif, evaluated in the listed order,
// the first triggering guard short-circuiting the rest. It is always
// supported regardless of OS family (spec §4.C).
//
// Guard evaluation happens in Check so the Resource Executor can fold a
// guard-triggered skip into the same Result{skipped} path as a failed
// `when` predicate; Check returns the sentinel state "skip" when a guard
// fires.
type commandProvider struct{}

func (commandProvider) Check(ctx context.Context, resource config.Resource, session Session, _ Context) (string, error) {
	cmd := resource.CmdRes

	if cmd.Creates != "" {
		info, err := session.Stat(ctx, cmd.Creates)
		if err != nil {
			return "", err
		}
		if info.Exists {
			return "skip", nil
		}
	}
	if cmd.Removes != "" {
		info, err := session.Stat(ctx, cmd.Removes)
		if err != nil {
			return "", err
		}
		if !info.Exists {
			return "skip", nil
		}
	}
	if cmd.Unless != "" {
		res, err := session.Exec(ctx, cmd.Unless, ExecOptions{})
		if err != nil {
			return "", err
		}
		if res.Ok() {
			return "skip", nil
		}
	}
	if cmd.Onlyif != "" {
		res, err := session.Exec(ctx, cmd.Onlyif, ExecOptions{})
		if err != nil {
			return "", err
		}
		if !res.Ok() {
			return "skip", nil
		}
	}

	return "run", nil
}

func (commandProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	if current == "skip" {
		return Diff{Changed: false, Before: "skip", After: "skip"}, nil
	}
	return Diff{Changed: true, Before: "pending", After: "run", Changes: []string{"run " + resource.CmdRes.Cmd}}, nil
}

func (commandProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	_, err := session.Exec(ctx, resource.CmdRes.Cmd, ExecOptions{})
	return diff, err
}

func (commandProvider) Describe(resource config.Resource) string { return resource.Describe() }
