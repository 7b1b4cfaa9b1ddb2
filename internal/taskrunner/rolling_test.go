package taskrunner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/facts"
	"github.com/nexus-fleet/nexus/internal/provider"
)

func rollingTaskWithHealthCheck(batchSize int) config.Task {
	return config.Task{
		Name:      "rollout",
		On:        "*",
		Strategy:  config.StrategyRolling,
		BatchSize: batchSize,
		Commands: []config.Step{
			{Kind: config.StepCommand, Command: &config.Command{Cmd: "deploy"}},
			{Kind: config.StepWaitFor, WaitFor: &config.WaitForStep{
				Kind: config.WaitForCommand, Target: "healthcheck",
				IntervalMillis: 1, TimeoutMillis: 5,
			}},
		},
	}
}

func newRollingTestRunner(sessions *fixedSessionProvider) *Runner {
	r := newTestRunner(sessions)
	r.deps.Facts = facts.NewGatherer(fakeLocalFacts{f: facts.Facts{OS: "linux", OSFamily: "debian"}}, fakeRemoteFacts{})
	return r
}

func TestRunRollingBatchesAndGatesOnHealthCheck(t *testing.T) {
	hosts := []string{"web1", "web2", "web3", "web4"}
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{
		"web1": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 0}}},
		"web2": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 0}}},
		"web3": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 0}}},
		"web4": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 0}}},
	}}
	r := newRollingTestRunner(sessions)

	task := rollingTaskWithHealthCheck(2)
	result := r.RunRolling(context.Background(), task, hosts, RunOptions{})

	require.Equal(t, "ok", result.Status)
	require.Len(t, result.HostResults, 4)
	for _, hr := range result.HostResults {
		require.Equal(t, "ok", hr.Status, "host %s", hr.HostName)
		require.Len(t, hr.Commands, 2, "host %s should have run deploy + health check", hr.HostName)
	}
}

func TestRunRollingOmitsLaterBatchesOnHealthCheckFailure(t *testing.T) {
	hosts := []string{"web1", "web2", "web3", "web4"}
	sessions := &fixedSessionProvider{sessions: map[string]*scriptedSession{
		"web1": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 1}}},
		"web2": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 1}}},
		"web3": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 0}}},
		"web4": {results: map[string]provider.ExecResult{"deploy": {ExitCode: 0}, "healthcheck": {ExitCode: 0}}},
	}}
	r := newRollingTestRunner(sessions)

	task := rollingTaskWithHealthCheck(2)
	result := r.RunRolling(context.Background(), task, hosts, RunOptions{})

	require.Equal(t, "error", result.Status, "first batch's health check failed")
	// Only the first batch (web1, web2) should have run at all; the second
	// batch (web3, web4) must be omitted once the first batch's health
	// check fails and continueOnError is false.
	require.Len(t, result.HostResults, 2, "later batch should be omitted")
	for _, hr := range result.HostResults {
		require.Contains(t, []string{"web1", "web2"}, hr.HostName)
	}
}
