package taskrunner

import (
	"sort"

	"github.com/nexus-fleet/nexus/internal/config"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// ResolveHosts returns the ordered host set a task's `on` field targets:
// [local] for the reserved local value, a single-element slice for a host
// name, or the group's declared host list (in declaration order) for a
// group name.
func ResolveHosts(cfg *config.Config, on string) ([]string, error) {
	if on == config.LocalHost {
		return []string{config.LocalHost}, nil
	}
	if _, ok := cfg.Hosts[on]; ok {
		return []string{on}, nil
	}
	if group, ok := cfg.Groups[on]; ok {
		return append([]string(nil), group.Hosts...), nil
	}
	return nil, streamyerrors.NewUnknownTasksError([]string{on})
}

// AllHostsSorted returns every host name declared in cfg.Hosts (the
// reserved `local` target is not included), sorted ascending — the target
// set for handler execution (spec §4.G step 6: a
// handler's `on` targets all hosts in Config).
func AllHostsSorted(cfg *config.Config) []string {
	names := cfg.AllHostNames()
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}
