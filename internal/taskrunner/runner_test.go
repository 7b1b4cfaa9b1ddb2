package taskrunner

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
	"github.com/nexus-fleet/nexus/internal/resource"
)

// scriptedSession implements provider.Session, answering Exec calls from a
// per-command script and recording every command it sees in call order.
type scriptedSession struct {
	results map[string]provider.ExecResult
	errs    map[string]error
	calls   []string
}

func newScriptedSession() *scriptedSession {
	return &scriptedSession{results: make(map[string]provider.ExecResult), errs: make(map[string]error)}
}

func (s *scriptedSession) Exec(_ context.Context, cmd string, _ provider.ExecOptions) (provider.ExecResult, error) {
	s.calls = append(s.calls, cmd)
	if err, ok := s.errs[cmd]; ok {
		return provider.ExecResult{}, err
	}
	return s.results[cmd], nil
}
func (s *scriptedSession) ExecSudo(ctx context.Context, cmd string, opts provider.ExecOptions) (provider.ExecResult, error) {
	return s.Exec(ctx, cmd, opts)
}
func (s *scriptedSession) Stat(context.Context, string) (provider.FileInfo, error) {
	return provider.FileInfo{}, nil
}
func (s *scriptedSession) ReadFile(context.Context, string) ([]byte, error) { return nil, nil }
func (s *scriptedSession) WriteFile(context.Context, string, []byte, os.FileMode) error {
	return nil
}
func (s *scriptedSession) Upload(context.Context, io.Reader, string, os.FileMode) error { return nil }
func (s *scriptedSession) Download(context.Context, string, string) error              { return nil }
func (s *scriptedSession) MkdirAll(context.Context, string, os.FileMode) error          { return nil }
func (s *scriptedSession) Remove(context.Context, string) error                        { return nil }

// fixedSessionProvider hands each host the *scriptedSession registered for
// it in sessions (creating and recording an empty one for a host with
// none), bypassing any pool/SSH transport.
type fixedSessionProvider struct {
	sessions map[string]*scriptedSession
}

func (p *fixedSessionProvider) WithSession(ctx context.Context, host string, fn func(provider.Session) (bool, error)) error {
	s := p.sessions[host]
	if s == nil {
		s = newScriptedSession()
		p.sessions[host] = s
	}
	_, err := fn(s)
	return err
}

type fakeLocalFacts struct{ f facts.Facts }

func (f fakeLocalFacts) LocalFacts() (facts.Facts, error) { return f.f, nil }

func newTestRunner(sessions *fixedSessionProvider) *Runner {
	gatherer := facts.NewGatherer(fakeLocalFacts{f: facts.Facts{OS: "linux", OSFamily: "debian"}}, nil)
	executor := resource.NewExecutor(provider.NewRegistry(), handlerqueue.New())
	return New(Deps{
		Sessions: sessions,
		Facts:    gatherer,
		Executor: executor,
		Settings: config.Settings{}.ApplyDefaults(),
	})
}

func commandTask(name, cmd string) config.Task {
	return config.Task{
		Name:     name,
		On:       config.LocalHost,
		Commands: []config.Step{{Kind: config.StepCommand, Command: &config.Command{Cmd: cmd}}},
	}
}

func TestRunnerRunSucceedsOnLocalHost(t *testing.T) {
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{
		config.LocalHost: {results: map[string]provider.ExecResult{"echo hi": {ExitCode: 0}}},
	}}
	r := newTestRunner(sessions)

	result := r.Run(context.Background(), commandTask("greet", "echo hi"), []string{config.LocalHost}, RunOptions{})
	require.Equal(t, "ok", result.Status)
	require.Len(t, result.HostResults, 1)
	require.Equal(t, config.LocalHost, result.HostResults[0].HostName)
}

func TestRunnerRunReportsErrorOnNonZeroExit(t *testing.T) {
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{
		config.LocalHost: {results: map[string]provider.ExecResult{"false": {ExitCode: 1}}},
	}}
	r := newTestRunner(sessions)

	result := r.Run(context.Background(), commandTask("fails", "false"), []string{config.LocalHost}, RunOptions{})
	require.Equal(t, "error", result.Status)
}

func TestRunnerRunRetriesUpToConfiguredAttempts(t *testing.T) {
	session := &scriptedSession{results: map[string]provider.ExecResult{"flaky": {ExitCode: 1}}}
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{config.LocalHost: session}}
	r := newTestRunner(sessions)

	task := config.Task{
		Name: "retry-me",
		On:   config.LocalHost,
		Commands: []config.Step{{Kind: config.StepCommand, Command: &config.Command{
			Cmd: "flaky", Retries: 2, RetryDelay: 1,
		}}},
	}

	result := r.Run(context.Background(), task, []string{config.LocalHost}, RunOptions{})
	require.Equal(t, "error", result.Status, "expected error after exhausting retries")
	outcome := result.HostResults[0].Commands[0]
	require.Equal(t, 3, outcome.Attempts, "want 1 initial + 2 retries")
}

func TestRunnerRunSerialStrategyRunsEveryHost(t *testing.T) {
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{
		"web1": {results: map[string]provider.ExecResult{"echo hi": {ExitCode: 0}}},
		"web2": {results: map[string]provider.ExecResult{"echo hi": {ExitCode: 0}}},
	}}
	r := newTestRunner(sessions)
	// Remote hosts need a RemoteFactSource; swap in one that always succeeds.
	r.deps.Facts = facts.NewGatherer(fakeLocalFacts{f: facts.Facts{OS: "linux", OSFamily: "debian"}}, fakeRemoteFacts{})

	task := commandTask("deploy", "echo hi")
	task.Strategy = config.StrategySerial

	result := r.Run(context.Background(), task, []string{"web1", "web2"}, RunOptions{})
	require.Equal(t, "ok", result.Status)
	require.Len(t, result.HostResults, 2)
}

type fakeRemoteFacts struct{}

func (fakeRemoteFacts) RemoteFacts(host string, run func(cmd string) (string, error)) (facts.Facts, error) {
	return facts.Facts{OS: "linux", OSFamily: "debian", Hostname: host}, nil
}

// TestRunnerRunCheckModeDoesNotExecuteResourceCommand verifies that
// RunOptions.CheckMode reaches the Resource Executor: a Command-resource
// that would change state must report "changed" without the provider's
// Apply ever invoking the underlying shell command (spec §4.D step 5).
func TestRunnerRunCheckModeDoesNotExecuteResourceCommand(t *testing.T) {
	session := newScriptedSession()
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{config.LocalHost: session}}
	r := newTestRunner(sessions)

	task := config.Task{
		Name: "preview",
		On:   config.LocalHost,
		Commands: []config.Step{{Kind: config.StepResource, Resource: &config.Resource{
			Kind:   config.ResourceCommand,
			CmdRes: &config.CommandResource{Cmd: "touch /tmp/marker"},
		}}},
	}

	result := r.Run(context.Background(), task, []string{config.LocalHost}, RunOptions{CheckMode: true})
	require.Equal(t, "ok", result.Status)
	require.Equal(t, CommandChanged, result.HostResults[0].Commands[0].Status)
	require.NotContains(t, session.calls, "touch /tmp/marker", "check mode must not invoke the resource's apply command")
}
