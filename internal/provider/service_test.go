package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-fleet/nexus/internal/config"
)

type serviceStatusSession struct {
	baseSession
	active, enabled bool
	sudoLog         []string
}

func (s *serviceStatusSession) Exec(_ context.Context, cmd string, _ ExecOptions) (ExecResult, error) {
	switch {
	case cmd == "systemctl is-active nginx":
		return okOr(s.active), nil
	case cmd == "systemctl is-enabled nginx":
		return okOr(s.enabled), nil
	}
	return ExecResult{ExitCode: 1}, nil
}

func (s *serviceStatusSession) ExecSudo(_ context.Context, cmd string, _ ExecOptions) (ExecResult, error) {
	s.sudoLog = append(s.sudoLog, cmd)
	return ExecResult{ExitCode: 0}, nil
}

func okOr(ok bool) ExecResult {
	if ok {
		return ExecResult{ExitCode: 0}
	}
	return ExecResult{ExitCode: 1}
}

func TestSystemdProviderStartsStoppedService(t *testing.T) {
	t.Parallel()

	session := &serviceStatusSession{active: false, enabled: true}
	res := config.Resource{Kind: config.ResourceService, Service: &config.ServiceResource{Name: "nginx"}}

	current, err := systemdProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := systemdProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed, "expected Changed=true for a stopped service with desired state started")

	_, err = systemdProvider{}.Apply(context.Background(), res, diff, session, Context{})
	require.NoError(t, err)
	require.Equal(t, []string{"systemctl start nginx"}, session.sudoLog)
}

func TestSystemdProviderNoChangeWhenAlreadyDesiredState(t *testing.T) {
	t.Parallel()

	enabled := true
	session := &serviceStatusSession{active: true, enabled: true}
	res := config.Resource{Kind: config.ResourceService, Service: &config.ServiceResource{Name: "nginx", State: "started", Enabled: &enabled}}

	current, err := systemdProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := systemdProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.False(t, diff.Changed, "Changes=%v", diff.Changes)
}

func TestSystemdProviderRestartedAlwaysChanges(t *testing.T) {
	t.Parallel()

	session := &serviceStatusSession{active: true, enabled: true}
	res := config.Resource{Kind: config.ResourceService, Service: &config.ServiceResource{Name: "nginx", State: "restarted"}}

	current, err := systemdProvider{}.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := systemdProvider{}.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed, "restarted state should always report a change")
}

func TestSelectServiceProviderPerOS(t *testing.T) {
	t.Parallel()

	got, err := selectServiceProvider(factsWithFamily("debian"))
	require.NoError(t, err)
	require.Equal(t, systemdProvider{}, got)

	darwinFacts := factsWithFamily("darwin")
	darwinFacts.OS = "darwin"
	got, err = selectServiceProvider(darwinFacts)
	require.NoError(t, err)
	require.Equal(t, launchdProvider{}, got)
}
