package resource

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/facts"
	"github.com/nexus-fleet/nexus/internal/handlerqueue"
	"github.com/nexus-fleet/nexus/internal/provider"
)

// baseSession implements provider.Session with no-op/zero-value behavior;
// tests embed it and override only the methods their scenario exercises.
type baseSession struct{}

func (baseSession) Exec(context.Context, string, provider.ExecOptions) (provider.ExecResult, error) {
	return provider.ExecResult{ExitCode: 0}, nil
}
func (baseSession) ExecSudo(context.Context, string, provider.ExecOptions) (provider.ExecResult, error) {
	return provider.ExecResult{ExitCode: 0}, nil
}
func (baseSession) Stat(context.Context, string) (provider.FileInfo, error) {
	return provider.FileInfo{}, nil
}
func (baseSession) ReadFile(context.Context, string) ([]byte, error)            { return nil, nil }
func (baseSession) WriteFile(context.Context, string, []byte, os.FileMode) error { return nil }
func (baseSession) Upload(context.Context, io.Reader, string, os.FileMode) error { return nil }
func (baseSession) Download(context.Context, string, string) error              { return nil }
func (baseSession) MkdirAll(context.Context, string, os.FileMode) error         { return nil }
func (baseSession) Remove(context.Context, string) error                       { return nil }

type alwaysOkSession struct{ baseSession }

func (alwaysOkSession) Exec(context.Context, string, provider.ExecOptions) (provider.ExecResult, error) {
	return provider.ExecResult{ExitCode: 0}, nil
}

type alwaysErrSession struct{ baseSession }

func (alwaysErrSession) Exec(context.Context, string, provider.ExecOptions) (provider.ExecResult, error) {
	return provider.ExecResult{ExitCode: 1}, nil
}

func newExecutor(t *testing.T) (*Executor, *handlerqueue.Queue) {
	t.Helper()
	queue := handlerqueue.New()
	return NewExecutor(provider.NewRegistry(), queue), queue
}

func TestExecuteSkipsWhenPredicateFalse(t *testing.T) {
	exec, queue := newExecutor(t)

	res := config.Resource{Kind: config.ResourceCommand, When: "os == windows", CmdRes: &config.CommandResource{Cmd: "true"}}
	rc := provider.Context{Facts: facts.Facts{OS: "linux"}}

	result := exec.Execute(context.Background(), res, alwaysErrSession{}, rc)
	require.Equal(t, StatusSkipped, result.Status)
	require.False(t, queue.AnyQueued(), "expected no handler queued for a skipped resource")
}

func TestExecuteUnsupportedOS(t *testing.T) {
	exec, _ := newExecutor(t)
	res := config.Resource{Kind: config.ResourcePackage, Package: &config.PackageResource{Names: []string{"nginx"}}}
	rc := provider.Context{Facts: facts.Facts{OSFamily: "plan9"}}

	result := exec.Execute(context.Background(), res, alwaysOkSession{}, rc)
	require.Equal(t, StatusFailed, result.Status)
}

func TestExecuteNoChangeReturnsOK(t *testing.T) {
	exec, _ := newExecutor(t)
	res := config.Resource{Kind: config.ResourceDirectory, Directory: &config.DirectoryResource{Path: "/tmp/gone", State: "absent"}}
	rc := provider.Context{Facts: facts.Facts{OS: "linux"}}

	result := exec.Execute(context.Background(), res, alwaysOkSession{}, rc)
	require.Equal(t, StatusOK, result.Status)
}

func TestExecuteGuardTriggersSkipNotFailure(t *testing.T) {
	exec, _ := newExecutor(t)
	res := config.Resource{Kind: config.ResourceCommand, CmdRes: &config.CommandResource{Cmd: "echo hi", Unless: "test -f /etc/hostname"}}
	rc := provider.Context{Facts: facts.Facts{OS: "linux"}}

	// alwaysOkSession reports the unless-check command succeeded, so the
	// guard should skip the resource rather than run or fail it.
	result := exec.Execute(context.Background(), res, alwaysOkSession{}, rc)
	require.Equal(t, StatusSkipped, result.Status, "guard should have fired")
}

func TestExecuteCheckModeDoesNotApplyOrNotify(t *testing.T) {
	exec, queue := newExecutor(t)
	res := config.Resource{Kind: config.ResourceCommand, Notify: "reload", CmdRes: &config.CommandResource{Cmd: "echo hi"}}
	rc := provider.Context{Facts: facts.Facts{OS: "linux"}, CheckMode: true}

	// alwaysErrSession would fail the command if Apply actually ran it.
	result := exec.Execute(context.Background(), res, alwaysErrSession{}, rc)
	require.Equal(t, StatusChanged, result.Status)
	require.False(t, queue.AnyQueued(), "check mode must not enqueue handlers since nothing was actually applied")
}

func TestExecuteAppliesAndEnqueuesNotify(t *testing.T) {
	exec, queue := newExecutor(t)
	res := config.Resource{Kind: config.ResourceCommand, Notify: "reload_cfg", CmdRes: &config.CommandResource{Cmd: "echo hi"}}
	rc := provider.Context{Facts: facts.Facts{OS: "linux"}}

	result := exec.Execute(context.Background(), res, alwaysOkSession{}, rc)
	require.Equal(t, StatusChanged, result.Status)
	require.True(t, queue.Queued("reload_cfg"), "expected notify target to be enqueued after a successful apply")
}

func TestExecuteAllStopsOnFirstFailureByDefault(t *testing.T) {
	exec, _ := newExecutor(t)
	resources := []config.Resource{
		{Kind: config.ResourcePackage, Package: &config.PackageResource{Names: []string{"nginx"}}}, // unsupported OS -> failed
		{Kind: config.ResourceCommand, CmdRes: &config.CommandResource{Cmd: "true"}},
	}
	rc := provider.Context{Facts: facts.Facts{OSFamily: "plan9"}}

	results := exec.ExecuteAll(context.Background(), resources, alwaysOkSession{}, rc, false)
	require.Len(t, results, 1, "should stop after the first failure")
}

func TestExecuteAllContinuesOnErrorWhenRequested(t *testing.T) {
	exec, _ := newExecutor(t)
	resources := []config.Resource{
		{Kind: config.ResourcePackage, Package: &config.PackageResource{Names: []string{"nginx"}}},
		{Kind: config.ResourceCommand, CmdRes: &config.CommandResource{Cmd: "true"}},
	}
	rc := provider.Context{Facts: facts.Facts{OSFamily: "plan9"}, CheckMode: true}

	results := exec.ExecuteAll(context.Background(), resources, alwaysOkSession{}, rc, true)
	require.Len(t, results, 2, "should continue past a failure when requested")
}
