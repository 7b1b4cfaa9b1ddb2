package facts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProbeOutputDebian(t *testing.T) {
	t.Parallel()

	out := "os=linux\n" +
		"arch=x86_64\n" +
		"hostname=web-01\n" +
		"cpu_count=4\n" +
		"memory_mb=2048\n" +
		"kernel_version=5.15.0-generic\n" +
		"user=deploy\n" +
		"id=ubuntu\n" +
		"id_like=debian\n"

	f := ParseProbeOutput(out)

	require.Equal(t, "linux", f.OS)
	require.Equal(t, "debian", f.OSFamily)
	require.Equal(t, "x86_64", f.Arch)
	require.Equal(t, "web-01", f.Hostname)
	require.Equal(t, "deploy", f.User)
	require.Equal(t, 4, f.CPUCount)
	require.Equal(t, 2048, f.MemoryMB)
	require.Equal(t, "5.15.0-generic", f.KernelVersion)
}

func TestParseProbeOutputRHELViaIDLike(t *testing.T) {
	t.Parallel()

	out := "os=linux\narch=aarch64\nhostname=h\ncpu_count=2\nmemory_mb=1024\n" +
		"kernel_version=4.18.0\nuser=root\nid=rocky\nid_like=rhel fedora\n"

	f := ParseProbeOutput(out)
	require.Equal(t, "rhel", f.OSFamily)
	require.Equal(t, "aarch64", f.Arch)
}

func TestParseProbeOutputDarwin(t *testing.T) {
	t.Parallel()

	out := "os=darwin\narch=x86_64\nhostname=mac\ncpu_count=8\nmemory_mb=16384\n" +
		"kernel_version=22.1.0\nuser=admin\nid=\nid_like=\n"

	f := ParseProbeOutput(out)
	require.Equal(t, "darwin", f.OSFamily)
}

func TestParseProbeOutputUnknownFamily(t *testing.T) {
	t.Parallel()

	out := "os=linux\narch=x86_64\nhostname=h\ncpu_count=1\nmemory_mb=512\n" +
		"kernel_version=1\nuser=u\nid=gentoo\nid_like=\n"
	f := ParseProbeOutput(out)
	require.Equal(t, "unknown", f.OSFamily)
}

func TestParseProbeOutputIgnoresMalformedLines(t *testing.T) {
	t.Parallel()

	out := "not a key value line\nos=linux\narch=x86_64\n"
	f := ParseProbeOutput(out)
	require.Equal(t, "linux", f.OS)
}

func TestRemoteFactsFallsBackToHostForEmptyHostname(t *testing.T) {
	t.Parallel()

	p := RemoteProber{}
	f, err := p.RemoteFacts("db-03", func(cmd string) (string, error) {
		require.Equal(t, ProbeScript, cmd)
		return "os=linux\narch=x86_64\nhostname=\ncpu_count=1\nmemory_mb=512\n" +
			"kernel_version=1\nuser=u\nid=debian\nid_like=\n", nil
	})
	require.NoError(t, err)
	require.Equal(t, "db-03", f.Hostname, "should fall back to the host argument")
}

func TestGathererCachesPerHost(t *testing.T) {
	calls := 0
	g := NewGatherer(nil, fakeRemote{fn: func(host string) (Facts, error) {
		calls++
		return Facts{Hostname: host}, nil
	}})

	for i := 0; i < 3; i++ {
		f, err := g.Remote("web-01", func(string) (string, error) { return "", nil })
		require.NoError(t, err)
		require.Equal(t, "web-01", f.Hostname)
	}
	require.Equal(t, 1, calls, "probe should be cached after the first call")

	_, err := g.Remote("web-02", func(string) (string, error) { return "", nil })
	require.NoError(t, err)
	require.Equal(t, 2, calls, "a distinct host should not be served from cache")
}

type fakeRemote struct {
	fn func(host string) (Facts, error)
}

func (f fakeRemote) RemoteFacts(host string, _ func(cmd string) (string, error)) (Facts, error) {
	return f.fn(host)
}
