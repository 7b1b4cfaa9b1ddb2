// Package facts derives per-host observations (OS, OS family, architecture,
// hostname, CPU count, memory, kernel version, user) that the provider
// registry uses to select an implementation for a resource kind. Local
// facts are read from the host OS directly; remote facts come from running
// a probe script over an established session and are cached for the
// pool's lifetime, per spec §4.H.
package facts

import "sync"

// Facts is the per-host observation set passed to resource providers and
// `when` predicate evaluation.
type Facts struct {
	OS            string
	OSFamily      string
	Arch          string
	Hostname      string
	CPUCount      int
	MemoryMB      int
	KernelVersion string
	User          string
}

// AsMap renders Facts as a string-keyed map for predicate evaluation.
func (f Facts) AsMap() map[string]string {
	return map[string]string{
		"os":             f.OS,
		"os_family":      f.OSFamily,
		"arch":           f.Arch,
		"hostname":       f.Hostname,
		"cpu_count":      itoa(f.CPUCount),
		"memory_mb":      itoa(f.MemoryMB),
		"kernel_version": f.KernelVersion,
		"user":           f.User,
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// LocalFactSource derives Facts for the machine Nexus itself runs on.
type LocalFactSource interface {
	LocalFacts() (Facts, error)
}

// RemoteFactSource derives Facts for a named remote host by running a probe
// over an already-established session.
type RemoteFactSource interface {
	RemoteFacts(host string, run func(cmd string) (string, error)) (Facts, error)
}

// Gatherer caches Facts per host for its own lifetime; cmd/nexus builds one
// per run beside the connection pool, so a host's facts are probed at most
// once per run.
type Gatherer struct {
	local  LocalFactSource
	remote RemoteFactSource

	mu    sync.Mutex
	cache map[string]Facts
}

// NewGatherer returns a Gatherer backed by local (for the reserved "local"
// host) and remote (for every other host).
func NewGatherer(local LocalFactSource, remote RemoteFactSource) *Gatherer {
	return &Gatherer{local: local, remote: remote, cache: make(map[string]Facts)}
}

// Local returns the cached local Facts, probing once on first call.
func (g *Gatherer) Local() (Facts, error) {
	return g.cached("", func() (Facts, error) {
		return g.local.LocalFacts()
	})
}

// Remote returns the cached Facts for host, probing via run once on first
// call for that host and caching thereafter.
func (g *Gatherer) Remote(host string, run func(cmd string) (string, error)) (Facts, error) {
	return g.cached(host, func() (Facts, error) {
		return g.remote.RemoteFacts(host, run)
	})
}

func (g *Gatherer) cached(key string, probe func() (Facts, error)) (Facts, error) {
	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	f, err := probe()
	if err != nil {
		return Facts{}, err
	}

	g.mu.Lock()
	g.cache[key] = f
	g.mu.Unlock()
	return f, nil
}
