package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hostSpecPattern = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// HostSpec is the parsed form of a "[user@]host[:port]" string.
type HostSpec struct {
	User string
	Host string
	Port int
}

// ParseHostSpec parses a "[user@]host[:port]" string into its components.
// Port defaults to 0 (caller applies Settings.DefaultPort) when absent.
func ParseHostSpec(spec string) (HostSpec, error) {
	m := hostSpecPattern.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return HostSpec{}, fmt.Errorf("invalid host spec %q", spec)
	}

	hs := HostSpec{User: m[1], Host: m[2]}
	if m[3] != "" {
		port, err := strconv.Atoi(m[3])
		if err != nil {
			return HostSpec{}, fmt.Errorf("invalid port in host spec %q: %w", spec, err)
		}
		hs.Port = port
	}
	return hs, nil
}

// String formats the HostSpec back into "[user@]host[:port]" form.
func (hs HostSpec) String() string {
	var b strings.Builder
	if hs.User != "" {
		b.WriteString(hs.User)
		b.WriteByte('@')
	}
	b.WriteString(hs.Host)
	if hs.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(hs.Port))
	}
	return b.String()
}
