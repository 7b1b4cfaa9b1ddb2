package sshconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveEarlierBlockWinsOverLater(t *testing.T) {
	t.Parallel()

	blocks := []Block{
		{Patterns: []string{"web*"}, User: "deploy", Port: 2222},
		{Patterns: []string{"*"}, User: "root", Port: 22, IdentityFile: "/home/root/.ssh/id_rsa"},
	}

	got := Resolve("web1", blocks)
	require.Equal(t, "deploy", got.User)
	require.Equal(t, 2222, got.Port)
	// Fields the winning block left unset still fall through to a later match.
	require.Equal(t, "/home/root/.ssh/id_rsa", got.IdentityFile)
}

func TestResolveNegatedPatternExcludesHost(t *testing.T) {
	t.Parallel()

	blocks := []Block{
		{Patterns: []string{"*", "!bastion"}, User: "deploy"},
	}

	require.Empty(t, Resolve("bastion", blocks).User, "negated pattern should exclude the host")
	require.Equal(t, "deploy", Resolve("web1", blocks).User)
}

func TestResolveQuestionMarkMatchesExactlyOneCharacter(t *testing.T) {
	t.Parallel()

	blocks := []Block{{Patterns: []string{"web?"}, User: "deploy"}}

	require.Equal(t, "deploy", Resolve("web1", blocks).User)
	require.Empty(t, Resolve("web10", blocks).User, "? matches exactly one character")
}

func TestResolveNoMatchingBlockReturnsZeroValue(t *testing.T) {
	t.Parallel()

	blocks := []Block{{Patterns: []string{"db*"}, User: "postgres"}}
	require.Equal(t, Resolved{}, Resolve("web1", blocks))
}

func TestResolveMergesBoolPointerFields(t *testing.T) {
	t.Parallel()

	blocks := []Block{
		{Patterns: []string{"*"}, ForwardAgent: boolPtr(true)},
		{Patterns: []string{"*"}, StrictHostKeyChecking: boolPtr(false)},
	}

	got := Resolve("web1", blocks)
	require.NotNil(t, got.ForwardAgent)
	require.True(t, *got.ForwardAgent)
	require.NotNil(t, got.StrictHostKeyChecking)
	require.False(t, *got.StrictHostKeyChecking)
}
