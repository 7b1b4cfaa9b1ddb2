// Package sshconfig resolves per-host connection overrides from an
// ssh_config-like block list: hostname, user, port, identity file,
// connect timeout, proxy-jump, forward-agent, and strict host-key
// checking. Pattern matching follows glob semantics (`*`, `?`, `!pattern`
// negation) the way OpenSSH's ssh_config Host directive does, but merge
// precedence is intentionally reversed from customary Unix ssh_config:
// earlier blocks take precedence over later ones, not the other way
// around (spec's explicit, documented design choice).
package sshconfig

import (
	"regexp"
	"strings"
)

// Block is one Host-pattern stanza and the overrides it sets.
type Block struct {
	Patterns             []string
	Hostname             string
	User                 string
	Port                 int
	IdentityFile         string
	ConnectTimeoutSec    int
	ProxyJump            string
	ForwardAgent         *bool
	StrictHostKeyChecking *bool
}

// Resolved is the merged set of overrides applicable to one host.
type Resolved struct {
	Hostname              string
	User                  string
	Port                  int
	IdentityFile          string
	ConnectTimeoutSec     int
	ProxyJump             string
	ForwardAgent          *bool
	StrictHostKeyChecking *bool
}

// Resolve merges every block matching host, in document order, with
// earlier blocks winning each already-set field — the reverse of
// OpenSSH's own last-match-wins-per-unset-field semantics.
func Resolve(host string, blocks []Block) Resolved {
	var out Resolved

	for _, block := range blocks {
		if !matches(host, block.Patterns) {
			continue
		}

		if out.Hostname == "" {
			out.Hostname = block.Hostname
		}
		if out.User == "" {
			out.User = block.User
		}
		if out.Port == 0 {
			out.Port = block.Port
		}
		if out.IdentityFile == "" {
			out.IdentityFile = block.IdentityFile
		}
		if out.ConnectTimeoutSec == 0 {
			out.ConnectTimeoutSec = block.ConnectTimeoutSec
		}
		if out.ProxyJump == "" {
			out.ProxyJump = block.ProxyJump
		}
		if out.ForwardAgent == nil {
			out.ForwardAgent = block.ForwardAgent
		}
		if out.StrictHostKeyChecking == nil {
			out.StrictHostKeyChecking = block.StrictHostKeyChecking
		}
	}

	return out
}

// matches reports whether host satisfies the pattern list: it must match
// at least one positive pattern and no negative ("!pattern") pattern.
func matches(host string, patterns []string) bool {
	matched := false
	for _, p := range patterns {
		if neg := strings.HasPrefix(p, "!"); neg {
			if globMatch(p[1:], host) {
				return false
			}
			continue
		}
		if globMatch(p, host) {
			matched = true
		}
	}
	return matched
}

// globMatch implements the restricted glob grammar ssh_config Host
// patterns use: `*` matches any run of characters, `?` matches exactly
// one.
func globMatch(pattern, host string) bool {
	re, err := regexp.Compile("^" + translateGlob(pattern) + "$")
	if err != nil {
		return pattern == host
	}
	return re.MatchString(host)
}

func translateGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
