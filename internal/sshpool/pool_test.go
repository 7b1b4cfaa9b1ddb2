package sshpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsForUnregisteredHostIsZeroValue(t *testing.T) {
	t.Parallel()

	p := NewPool()
	require.Equal(t, Stats{}, p.Stats("ghost"))
}

func TestRegisterDefaultsMaxConnections(t *testing.T) {
	t.Parallel()

	p := NewPool()
	p.Register("web1", Options{}, nil)

	require.Equal(t, 5, p.Stats("web1").PoolSize, "default MaxConnections when unset")
}

func TestRegisterHonorsExplicitMaxConnections(t *testing.T) {
	t.Parallel()

	p := NewPool()
	p.Register("web1", Options{MaxConnections: 3}, nil)

	got := p.Stats("web1")
	require.Equal(t, 3, got.PoolSize)
	require.Equal(t, 0, got.Available)
	require.Equal(t, 3, got.InUse)
}
