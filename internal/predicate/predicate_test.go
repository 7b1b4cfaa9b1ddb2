package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalEmptyExprIsTrue(t *testing.T) {
	t.Parallel()

	assert.True(t, Eval("", map[string]string{"os": "linux"}), "empty expression should evaluate true")
	assert.True(t, Eval("   ", nil), "whitespace-only expression should evaluate true")
}

func TestEvalEquality(t *testing.T) {
	t.Parallel()

	facts := map[string]string{"os_family": "debian"}

	cases := []struct {
		expr string
		want bool
	}{
		{`os_family == debian`, true},
		{`os_family == "debian"`, true},
		{`os_family == 'debian'`, true},
		{`os_family == rhel`, false},
		{`os_family != rhel`, true},
		{`os_family != debian`, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Eval(tc.expr, facts), "Eval(%q)", tc.expr)
	}
}

func TestEvalBareFactTruthiness(t *testing.T) {
	t.Parallel()

	facts := map[string]string{"user": "deploy", "empty": ""}
	assert.True(t, Eval("user", facts), "non-empty fact should be truthy")
	assert.False(t, Eval("empty", facts), "empty fact should be falsy")
	assert.False(t, Eval("missing", facts), "missing fact should be falsy")
}

func TestEvalNot(t *testing.T) {
	t.Parallel()

	facts := map[string]string{"os": "darwin"}
	assert.True(t, Eval("not os == linux", facts), "negated clause should flip result")
	assert.False(t, Eval("not os == darwin", facts), "negated true clause should be false")
}

func TestEvalAndOrPrecedence(t *testing.T) {
	t.Parallel()

	facts := map[string]string{"os_family": "debian", "arch": "amd64"}

	// "and" binds tighter than "or": this reads as
	// (os_family == rhel and arch == amd64) or (os_family == debian)
	assert.True(t, Eval("os_family == rhel and arch == amd64 or os_family == debian", facts))
	assert.False(t, Eval("os_family == debian and arch == arm64", facts))
	assert.True(t, Eval("os_family == debian and arch == amd64", facts))
}
