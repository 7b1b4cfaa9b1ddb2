package taskrunner

import (
	"context"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/provider"
	"github.com/nexus-fleet/nexus/internal/sshpool"
)

// PoolSessions adapts *sshpool.Pool (for remote hosts) and
// sshpool.LocalSession (for the reserved local host) into the single
// SessionProvider Runner depends on, implementing spec §4.B's "local
// execution shortcut" by bypassing the pool entirely for config.LocalHost.
type PoolSessions struct {
	Pool  *sshpool.Pool
	local *sshpool.LocalSession
}

// NewPoolSessions returns a SessionProvider backed by pool.
func NewPoolSessions(pool *sshpool.Pool) *PoolSessions {
	return &PoolSessions{Pool: pool, local: sshpool.NewLocalSession()}
}

// WithSession runs fn with a session for host, using the local shortcut
// for config.LocalHost and the pool otherwise.
func (p *PoolSessions) WithSession(ctx context.Context, host string, fn func(provider.Session) (bool, error)) error {
	if host == config.LocalHost {
		_, err := fn(p.local)
		return err
	}
	return p.Pool.WithConnection(ctx, host, func(s *sshpool.Session) (bool, error) {
		return fn(s)
	})
}
