package facts

import "strings"

// ProbeScript is the well-known shell probe spec §4.H requires: a single
// command line whose stdout is nine "key=value" lines, parsed by
// ParseProbeOutput. It avoids tools not guaranteed present (no `lsb_release`,
// no `python`) so it runs on a minimal remote image.
const ProbeScript = `echo "os=$(uname -s | tr '[:upper:]' '[:lower:]')"; ` +
	`echo "arch=$(uname -m)"; ` +
	`echo "hostname=$(hostname)"; ` +
	`echo "cpu_count=$(nproc 2>/dev/null || getconf _NPROCESSORS_ONLN 2>/dev/null || echo 0)"; ` +
	`echo "memory_mb=$(awk '/MemTotal/{print int($2/1024)}' /proc/meminfo 2>/dev/null || echo 0)"; ` +
	`echo "kernel_version=$(uname -r)"; ` +
	`echo "user=$(id -un)"; ` +
	`if [ -f /etc/os-release ]; then . /etc/os-release; echo "id=$ID"; echo "id_like=$ID_LIKE"; ` +
	`else echo "id="; echo "id_like="; fi`

// RemoteProber gathers Facts for a remote host by running ProbeScript over
// an already-established session (the run closure supplied by the caller).
type RemoteProber struct{}

// RemoteFacts runs ProbeScript via run and parses its output.
func (RemoteProber) RemoteFacts(host string, run func(cmd string) (string, error)) (Facts, error) {
	out, err := run(ProbeScript)
	if err != nil {
		return Facts{}, err
	}
	f := ParseProbeOutput(out)
	f.Hostname = firstNonEmpty(f.Hostname, host)
	return f, nil
}

// ParseProbeOutput decodes ProbeScript's "key=value" line output into Facts,
// deriving os_family from the raw /etc/os-release ID/ID_LIKE values the
// same way the package's linuxFamily classifies them for LocalProber.
func ParseProbeOutput(output string) Facts {
	values := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[key] = val
	}

	f := Facts{
		OS:            values["os"],
		Arch:          normalizeArch(goArchFromUname(values["arch"])),
		Hostname:      values["hostname"],
		KernelVersion: values["kernel_version"],
		User:          values["user"],
	}
	f.CPUCount = atoiOr(values["cpu_count"], 0)
	f.MemoryMB = atoiOr(values["memory_mb"], 0)

	switch f.OS {
	case "darwin":
		f.OSFamily = "darwin"
	case "linux":
		f.OSFamily = classifyID(values["id"], values["id_like"])
	default:
		f.OSFamily = "unknown"
	}

	return f
}

func classifyID(id, idLike string) string {
	for _, candidate := range append([]string{id}, strings.Fields(idLike)...) {
		switch candidate {
		case "debian", "ubuntu":
			return "debian"
		case "rhel", "fedora", "centos", "rocky", "almalinux":
			return "rhel"
		case "arch", "manjaro":
			return "arch"
		case "alpine":
			return "alpine"
		}
	}
	return "unknown"
}

// goArchFromUname maps `uname -m` output to the runtime.GOARCH vocabulary
// normalizeArch already understands.
func goArchFromUname(unameM string) string {
	switch unameM {
	case "x86_64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l", "armv6l":
		return "arm"
	default:
		return unameM
	}
}

func atoiOr(s string, fallback int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	if s == "" {
		return fallback
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
