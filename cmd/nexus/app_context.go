package main

import (
	"fmt"
	"time"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/facts"
	"github.com/nexus-fleet/nexus/internal/logger"
	"github.com/nexus-fleet/nexus/internal/pipeline"
	"github.com/nexus-fleet/nexus/internal/provider"
	"github.com/nexus-fleet/nexus/internal/sshpool"
	"github.com/nexus-fleet/nexus/internal/taskrunner"
	"github.com/nexus-fleet/nexus/internal/telemetry"
)

// AppContext bundles the long-lived collaborators a subcommand needs,
// mirroring the shape of the teacher's cmd/streamy AppContext. It holds
// only the logger, assembled once in main and handed to each cobra RunE;
// subcommands load the config themselves and call buildPipeline for the
// rest of Pipeline.New's collaborators.
type AppContext struct {
	Logger *logger.Logger
}

// buildPipeline takes an already-parsed cfg and wires a *pipeline.Pipeline plus
// the connection pool backing it, following the teacher's
// prepare-then-apply wiring shape (configLoader -> dagBuilder -> executor)
// generalized to Nexus's pool/registry/gatherer collaborators.
func (a *AppContext) buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *sshpool.Pool) {
	pool := sshpool.NewPool()
	settings := cfg.Settings.ApplyDefaults()

	for name, host := range cfg.Hosts {
		user := host.User
		if user == "" {
			user = settings.DefaultUser
		}
		port := host.Port
		if port == 0 {
			port = settings.DefaultPort
		}
		addr := fmt.Sprintf("%s:%d", host.Hostname, port)

		opts := sshpool.Options{
			User:           user,
			Port:           port,
			ConnectTimeout: time.Duration(settings.ConnectTimeout) * time.Second,
			MaxConnections: settings.MaxConnections,
			IdleTimeout:    5 * time.Minute,
			HostKeyStrict:  false,
		}
		pool.Register(name, opts, sshpool.DefaultDialer(name, addr, opts))
	}

	gatherer := facts.NewGatherer(facts.LocalProber{}, facts.RemoteProber{})
	registry := provider.NewRegistry()
	emitter := telemetry.NewLogEmitter(a.Logger)
	pool.SetEmitter(emitter)

	p := pipeline.New(cfg, pipeline.Deps{
		Sessions: taskrunner.NewPoolSessions(pool),
		Facts:    gatherer,
		Registry: registry,
		Emitter:  emitter,
	})
	return p, pool
}
