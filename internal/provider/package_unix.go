package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexus-fleet/nexus/internal/config"
)

// aptProvider manages Debian-family packages via dpkg-query/apt-get,
// grounded on the teacher's internal/plugins/package port_plugin dpkg
// check + apt-get install invocation.
type aptProvider struct{}

func (aptProvider) Check(ctx context.Context, resource config.Resource, session Session, rc Context) (string, error) {
	return checkPackages(ctx, session, resource.Package.Names, "dpkg-query -W -f='${Status}' %s 2>/dev/null | grep -q '^install ok installed'")
}

func (aptProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffPackages(resource.Package, current)
}

func (aptProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	names := strings.Join(resource.Package.Names, " ")
	cmd := fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get install -y %s", names)
	if resource.Package.State == "absent" {
		cmd = fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get remove -y %s", names)
	}
	_, err := session.ExecSudo(ctx, cmd, ExecOptions{})
	return diff, err
}

func (aptProvider) Describe(resource config.Resource) string { return resource.Describe() }

// yumProvider manages RHEL-family packages via rpm/yum.
type yumProvider struct{}

func (yumProvider) Check(ctx context.Context, resource config.Resource, session Session, rc Context) (string, error) {
	return checkPackages(ctx, session, resource.Package.Names, "rpm -q %s")
}

func (yumProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffPackages(resource.Package, current)
}

func (yumProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	names := strings.Join(resource.Package.Names, " ")
	cmd := fmt.Sprintf("yum install -y %s", names)
	if resource.Package.State == "absent" {
		cmd = fmt.Sprintf("yum remove -y %s", names)
	}
	_, err := session.ExecSudo(ctx, cmd, ExecOptions{})
	return diff, err
}

func (yumProvider) Describe(resource config.Resource) string { return resource.Describe() }

// pacmanProvider manages Arch-family packages via pacman.
type pacmanProvider struct{}

func (pacmanProvider) Check(ctx context.Context, resource config.Resource, session Session, rc Context) (string, error) {
	return checkPackages(ctx, session, resource.Package.Names, "pacman -Q %s")
}

func (pacmanProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffPackages(resource.Package, current)
}

func (pacmanProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	names := strings.Join(resource.Package.Names, " ")
	cmd := fmt.Sprintf("pacman -S --noconfirm %s", names)
	if resource.Package.State == "absent" {
		cmd = fmt.Sprintf("pacman -R --noconfirm %s", names)
	}
	_, err := session.ExecSudo(ctx, cmd, ExecOptions{})
	return diff, err
}

func (pacmanProvider) Describe(resource config.Resource) string { return resource.Describe() }

// brewProvider manages Homebrew packages on macOS.
type brewProvider struct{}

func (brewProvider) Check(ctx context.Context, resource config.Resource, session Session, rc Context) (string, error) {
	return checkPackages(ctx, session, resource.Package.Names, "brew list --versions %s")
}

func (brewProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffPackages(resource.Package, current)
}

func (brewProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	names := strings.Join(resource.Package.Names, " ")
	cmd := fmt.Sprintf("brew install %s", names)
	if resource.Package.State == "absent" {
		cmd = fmt.Sprintf("brew uninstall %s", names)
	}
	_, err := session.Exec(ctx, cmd, ExecOptions{})
	return diff, err
}

func (brewProvider) Describe(resource config.Resource) string { return resource.Describe() }

// checkPackages runs checkCmdFmt (a one-%s format string) against every
// named package, returning a "name:installed|absent" line per package as
// the check-state string Diff later parses.
func checkPackages(ctx context.Context, session Session, names []string, checkCmdFmt string) (string, error) {
	var lines []string
	for _, name := range names {
		res, err := session.Exec(ctx, fmt.Sprintf(checkCmdFmt, name), ExecOptions{})
		if err != nil {
			return "", err
		}
		state := "absent"
		if res.Ok() {
			state = "installed"
		}
		lines = append(lines, name+":"+state)
	}
	return strings.Join(lines, ","), nil
}

func diffPackages(pkg *config.PackageResource, current string) (Diff, error) {
	wantInstalled := pkg.State != "absent"
	states := parsePackageStates(current)

	var changes []string
	for _, name := range pkg.Names {
		installed := states[name] == "installed"
		if wantInstalled && !installed {
			changes = append(changes, fmt.Sprintf("install %s", name))
		}
		if !wantInstalled && installed {
			changes = append(changes, fmt.Sprintf("remove %s", name))
		}
	}

	return Diff{
		Changed: len(changes) > 0,
		Before:  current,
		After:   desiredPackageState(pkg.Names, wantInstalled),
		Changes: changes,
	}, nil
}

func parsePackageStates(current string) map[string]string {
	states := make(map[string]string)
	for _, pair := range strings.Split(current, ",") {
		name, state, ok := strings.Cut(pair, ":")
		if ok {
			states[name] = state
		}
	}
	return states
}

func desiredPackageState(names []string, installed bool) string {
	state := "absent"
	if installed {
		state = "installed"
	}
	var lines []string
	for _, n := range names {
		lines = append(lines, n+":"+state)
	}
	return strings.Join(lines, ",")
}
