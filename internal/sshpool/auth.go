// Package sshpool implements the bounded per-host SSH connection pool:
// lazy session creation, failure eviction, an idle reaper, FIFO fairness
// among blocked checkouts, and the priority-ordered authentication
// resolution chain spec §4.B describes. It is grounded on golang.org/x/crypto/ssh
// for transport, github.com/pkg/sftp for file operations, and the teacher's
// go-git-transitive dependencies github.com/xanzy/ssh-agent (agent auth) and
// github.com/skeema/knownhosts (host-key verification) repurposed here for
// their original concerns rather than git's.
package sshpool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skeema/knownhosts"
	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"

	"github.com/nexus-fleet/nexus/internal/sshconfig"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// AuthOptions carries the explicit, caller-supplied authentication
// material considered before any discovered source.
type AuthOptions struct {
	IdentityFile string
	Password     string
}

// defaultKeyNames are the standard-location private keys tried as a last
// resort before falling back to password auth.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// ResolveAuth builds the ordered list of ssh.AuthMethod for host, following
// spec §4.B's priority chain: (1) explicit identity file, (2) SSH-config
// host-specific identity, (3) running agent, (4) default keys, (5) explicit
// password. Every candidate that resolves successfully is offered to the
// server in order; ssh.Client tries each until one succeeds.
func ResolveAuth(host string, opts AuthOptions, resolved sshconfig.Resolved) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if opts.IdentityFile != "" {
		signer, err := loadPrivateKey(opts.IdentityFile)
		if err != nil {
			return nil, streamyerrors.NewConnectionError(host, err.Error(), true, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if resolved.IdentityFile != "" {
		signer, err := loadPrivateKey(resolved.IdentityFile)
		if err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if agentSigners, closer, err := agentSigners(); err == nil {
		methods = append(methods, ssh.PublicKeys(agentSigners...))
		if closer != nil {
			defer closer.Close()
		}
	}

	for _, name := range defaultKeyNames {
		path := filepath.Join(homeDir(), ".ssh", name)
		if signer, err := loadPrivateKey(path); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}

	if len(methods) == 0 {
		return nil, streamyerrors.NewConnectionError(host, "no authentication method available", true, nil)
	}
	return methods, nil
}

func agentSigners() ([]ssh.Signer, *sshAgentCloser, error) {
	agentClient, conn, err := sshagent.New()
	if err != nil {
		return nil, nil, err
	}
	signers, err := agentClient.Signers()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return signers, &sshAgentCloser{conn}, nil
}

type sshAgentCloser struct {
	closer interface{ Close() error }
}

func (c *sshAgentCloser) Close() {
	if c != nil && c.closer != nil {
		_ = c.closer.Close()
	}
}

// loadPrivateKey reads and parses a private key at path, rejecting keys
// that are group- or world-readable (spec §4.B).
func loadPrivateKey(path string) (ssh.Signer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("private key %s is group- or world-readable", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(data)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// HostKeyCallback builds a host-key verification callback backed by the
// user's known_hosts file, using skeema/knownhosts to add the algorithm
// negotiation OpenSSH's own client performs (so servers offering only an
// ed25519 key, say, aren't rejected by a callback that only knows RSA).
func HostKeyCallback(knownHostsPath string, strict bool) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicit opt-out per config
	}

	kh, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}
	return kh.HostKeyCallback(), nil
}

// hostKeyAlgorithms exposes knownhosts' algorithm-ordering helper so callers
// constructing an ssh.ClientConfig can offer the algorithms already present
// for a given host first.
func hostKeyAlgorithms(kh knownhosts.HostKeyCallback, addr string) []string {
	return kh.HostKeyAlgorithms(addr)
}
