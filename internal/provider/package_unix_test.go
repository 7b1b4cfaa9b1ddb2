package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/facts"
)

func factsWithFamily(family string) facts.Facts {
	return facts.Facts{OSFamily: family}
}

// packageCheckSession answers apt-style "dpkg-query"-shaped check commands
// (the exact template doesn't matter to the test, only that each queried
// package name maps to an ExecResult) and lets a test flip a package from
// absent to installed between two Check calls, modeling a real apply.
type packageCheckSession struct {
	baseSession
	installed map[string]bool
}

func (s *packageCheckSession) Exec(_ context.Context, cmd string, _ ExecOptions) (ExecResult, error) {
	// checkPackages formats one command per name via a one-%s template; the
	// name is not always the final token (the apt template pipes into grep),
	// so any whitespace-delimited token naming an installed package counts.
	for _, field := range strings.Fields(cmd) {
		if s.installed[field] {
			return ExecResult{ExitCode: 0}, nil
		}
	}
	return ExecResult{ExitCode: 1}, nil
}

func TestPackageIdempotencyFirstRunChangesSecondRunOK(t *testing.T) {
	session := &packageCheckSession{installed: map[string]bool{}}
	res := config.Resource{Kind: config.ResourcePackage, Package: &config.PackageResource{Names: []string{"nginx"}}}

	prov := aptProvider{}

	// First run: nginx is absent, so Check/Diff must report a pending install.
	current, err := prov.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := prov.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed, "expected Changed=true on first run with package absent")
	require.Contains(t, diff.Changes, "install nginx")

	_, err = prov.Apply(context.Background(), res, diff, session, Context{})
	require.NoError(t, err)
	session.installed["nginx"] = true // simulate the install having taken effect

	// Second run: nginx is now installed, so Check/Diff must report no change.
	current2, err := prov.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff2, err := prov.Diff(context.Background(), res, current2, Context{})
	require.NoError(t, err)
	require.False(t, diff2.Changed, "expected Changed=false on second run")
	require.Empty(t, diff2.Changes)
}

func TestPackageAbsentStateRemovesInstalled(t *testing.T) {
	t.Parallel()

	session := &packageCheckSession{installed: map[string]bool{"curl": true}}
	res := config.Resource{Kind: config.ResourcePackage, Package: &config.PackageResource{Names: []string{"curl"}, State: "absent"}}

	prov := aptProvider{}
	current, err := prov.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := prov.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.True(t, diff.Changed, "expected Changed=true removing an installed package")
	require.Equal(t, []string{"remove curl"}, diff.Changes)
}

func TestPackageMultipleNamesOnlyReportsMissing(t *testing.T) {
	t.Parallel()

	session := &packageCheckSession{installed: map[string]bool{"nginx": true}}
	res := config.Resource{Kind: config.ResourcePackage, Package: &config.PackageResource{Names: []string{"nginx", "curl"}}}

	prov := aptProvider{}
	current, err := prov.Check(context.Background(), res, session, Context{})
	require.NoError(t, err)
	diff, err := prov.Diff(context.Background(), res, current, Context{})
	require.NoError(t, err)
	require.Equal(t, []string{"install curl"}, diff.Changes)
}

func TestSelectPackageProviderPerOSFamily(t *testing.T) {
	t.Parallel()

	cases := map[string]Provider{
		"debian": aptProvider{},
		"rhel":   yumProvider{},
		"arch":   pacmanProvider{},
		"darwin": brewProvider{},
	}
	for family, want := range cases {
		got, err := selectPackageProvider(factsWithFamily(family))
		require.NoError(t, err, "selectPackageProvider(%q)", family)
		require.Equal(t, want, got, "selectPackageProvider(%q)", family)
	}
}

func TestSelectPackageProviderUnsupportedFamily(t *testing.T) {
	t.Parallel()

	_, err := selectPackageProvider(factsWithFamily("plan9"))
	require.Error(t, err)
}
