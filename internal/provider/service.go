package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexus-fleet/nexus/internal/config"
)

// systemdProvider manages services on systemd-based Linux distributions.
type systemdProvider struct{}

func (systemdProvider) Check(ctx context.Context, resource config.Resource, session Session, _ Context) (string, error) {
	name := resource.Service.Name
	active, err := session.Exec(ctx, fmt.Sprintf("systemctl is-active %s", name), ExecOptions{})
	if err != nil {
		return "", err
	}
	enabled, err := session.Exec(ctx, fmt.Sprintf("systemctl is-enabled %s", name), ExecOptions{})
	if err != nil {
		return "", err
	}
	return serviceState(active.Ok(), enabled.Ok()), nil
}

func (systemdProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffService(resource.Service, current)
}

func (systemdProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	name := resource.Service.Name
	for _, cmd := range serviceCommands(name, "systemctl", resource.Service) {
		if _, err := session.ExecSudo(ctx, cmd, ExecOptions{}); err != nil {
			return diff, err
		}
	}
	return diff, nil
}

func (systemdProvider) Describe(resource config.Resource) string { return resource.Describe() }

// launchdProvider manages services via launchctl on macOS.
type launchdProvider struct{}

func (launchdProvider) Check(ctx context.Context, resource config.Resource, session Session, _ Context) (string, error) {
	name := resource.Service.Name
	res, err := session.Exec(ctx, fmt.Sprintf("launchctl list | grep -q %s", name), ExecOptions{})
	if err != nil {
		return "", err
	}
	return serviceState(res.Ok(), res.Ok()), nil
}

func (launchdProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffService(resource.Service, current)
}

func (launchdProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	name := resource.Service.Name
	action := "load"
	if resource.Service.State == "stopped" {
		action = "unload"
	}
	_, err := session.Exec(ctx, fmt.Sprintf("launchctl %s %s", action, name), ExecOptions{})
	return diff, err
}

func (launchdProvider) Describe(resource config.Resource) string { return resource.Describe() }

func serviceState(active, enabled bool) string {
	a, e := "stopped", "disabled"
	if active {
		a = "started"
	}
	if enabled {
		e = "enabled"
	}
	return a + "," + e
}

func diffService(svc *config.ServiceResource, current string) (Diff, error) {
	parts := strings.Split(current, ",")
	currentState, currentEnabled := "stopped", "disabled"
	if len(parts) == 2 {
		currentState, currentEnabled = parts[0], parts[1]
	}

	var changes []string
	wantState := svc.State
	if wantState == "" {
		wantState = "started"
	}
	if wantState == "restarted" || currentState != wantState {
		if wantState == "restarted" {
			changes = append(changes, "restart "+svc.Name)
		} else {
			changes = append(changes, fmt.Sprintf("%s -> %s", currentState, wantState))
		}
	}

	if svc.Enabled != nil {
		wantEnabled := "disabled"
		if *svc.Enabled {
			wantEnabled = "enabled"
		}
		if currentEnabled != wantEnabled {
			changes = append(changes, fmt.Sprintf("%s -> %s", currentEnabled, wantEnabled))
		}
	}

	return Diff{
		Changed: len(changes) > 0,
		Before:  current,
		After:   wantState + "," + currentEnabled,
		Changes: changes,
	}, nil
}

func serviceCommands(name, tool string, svc *config.ServiceResource) []string {
	var cmds []string
	switch svc.State {
	case "stopped":
		cmds = append(cmds, fmt.Sprintf("%s stop %s", tool, name))
	case "restarted":
		cmds = append(cmds, fmt.Sprintf("%s restart %s", tool, name))
	default:
		cmds = append(cmds, fmt.Sprintf("%s start %s", tool, name))
	}
	if svc.Enabled != nil {
		action := "disable"
		if *svc.Enabled {
			action = "enable"
		}
		cmds = append(cmds, fmt.Sprintf("%s %s %s", tool, action, name))
	}
	return cmds
}
