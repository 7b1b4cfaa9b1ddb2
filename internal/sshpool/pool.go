package sshpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/semaphore"

	"github.com/nexus-fleet/nexus/internal/config"
	"github.com/nexus-fleet/nexus/internal/sshconfig"
	"github.com/nexus-fleet/nexus/internal/telemetry"
	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

// Options configures the pool for one host.
type Options struct {
	User           string
	Port           int
	ConnectTimeout time.Duration
	MaxConnections int
	IdleTimeout    time.Duration
	Auth           AuthOptions
	HostKeyStrict  bool
	KnownHostsPath string
	SSHConfig      []sshconfig.Block
}

// hostPool tracks the idle sessions and in-flight capacity for one host.
// The semaphore enforces bounded capacity and FIFO fairness: Acquire
// blocks callers in arrival order since golang.org/x/sync/semaphore
// wakes waiters in FIFO order on Release.
type hostPool struct {
	mu     sync.Mutex
	host   string
	idle   []*Session
	sem    *semaphore.Weighted
	opts   Options
	dialer func(ctx context.Context) (*ssh.Client, error)
	closed bool
}

// Pool is the set of per-host connection pools for one Nexus run.
type Pool struct {
	mu      sync.Mutex
	hosts   map[string]*hostPool
	emitter telemetry.Emitter
}

// NewPool returns an empty Pool that discards telemetry until SetEmitter
// is called.
func NewPool() *Pool {
	return &Pool{hosts: make(map[string]*hostPool), emitter: telemetry.NopEmitter{}}
}

// SetEmitter attaches the sink for this pool's `ssh.connect.start`/
// `ssh.connect.stop` events (spec §6).
func (p *Pool) SetEmitter(e telemetry.Emitter) {
	if e == nil {
		e = telemetry.NopEmitter{}
	}
	p.mu.Lock()
	p.emitter = e
	p.mu.Unlock()
}

func (p *Pool) emitterRef() telemetry.Emitter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emitter
}

// Register configures the pool for host with the given dial options.
func (p *Pool) Register(host string, opts Options, dialer func(ctx context.Context) (*ssh.Client, error)) {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 5
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hosts[host] = &hostPool{
		host:   host,
		sem:    semaphore.NewWeighted(int64(opts.MaxConnections)),
		opts:   opts,
		dialer: dialer,
	}
}

// Stats reports the pool-size/available/in-use triple for host.
type Stats struct {
	PoolSize  int
	Available int
	InUse     int
}

// Stats returns current utilization for host.
func (p *Pool) Stats(host string) Stats {
	p.mu.Lock()
	hp, ok := p.hosts[host]
	p.mu.Unlock()
	if !ok {
		return Stats{}
	}
	hp.mu.Lock()
	defer hp.mu.Unlock()
	return Stats{
		PoolSize:  hp.opts.MaxConnections,
		Available: len(hp.idle),
		InUse:     hp.opts.MaxConnections - len(hp.idle),
	}
}

// WithConnection checks out a session for host, runs fn, and returns the
// session to the pool — or destroys it if fn reports a session-level
// failure, per spec §4.B's failure-eviction rule.
func (p *Pool) WithConnection(ctx context.Context, host string, fn func(*Session) (sessionFailed bool, err error)) error {
	p.mu.Lock()
	hp, ok := p.hosts[host]
	p.mu.Unlock()
	if !ok {
		return streamyerrors.NewConnectionError(host, "pool not registered for host", false, nil)
	}

	if err := hp.sem.Acquire(ctx, 1); err != nil {
		return streamyerrors.NewTimeoutError(fmt.Sprintf("checkout(%s)", host))
	}
	defer hp.sem.Release(1)

	session, err := hp.checkoutOrCreate(ctx, p.emitterRef())
	if err != nil {
		return err
	}

	failed, err := fn(session)
	if failed {
		_ = session.Close()
		return err
	}

	hp.checkin(session)
	return err
}

func (hp *hostPool) checkoutOrCreate(ctx context.Context, emitter telemetry.Emitter) (*Session, error) {
	hp.mu.Lock()
	if len(hp.idle) > 0 {
		s := hp.idle[len(hp.idle)-1]
		hp.idle = hp.idle[:len(hp.idle)-1]
		hp.mu.Unlock()
		if s.Alive() {
			return s, nil
		}
		_ = s.Close()
	} else {
		hp.mu.Unlock()
	}

	start := time.Now()
	emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventSSHConnectStart, Fields: map[string]any{"host": hp.host}})

	client, err := hp.dialer(ctx)

	stopFields := map[string]any{"host": hp.host, "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		stopFields["error"] = err.Error()
		emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventSSHConnectStop, Fields: stopFields})
		return nil, err
	}
	emitter.Emit(ctx, telemetry.Event{Type: telemetry.EventSSHConnectStop, Fields: stopFields})

	return newSession(hp.host, client), nil
}

func (hp *hostPool) checkin(s *Session) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	if hp.closed {
		_ = s.Close()
		return
	}
	hp.idle = append(hp.idle, s)
}

// ReapIdle closes every idle session across all hosts that has been idle
// longer than its pool's IdleTimeout. The pool starts no timer of its own,
// and neither the pipeline nor cmd/nexus calls ReapIdle, so in a CLI run
// idle sessions stay open until CloseAll.
func (p *Pool) ReapIdle(now time.Time) {
	p.mu.Lock()
	pools := make([]*hostPool, 0, len(p.hosts))
	for _, hp := range p.hosts {
		pools = append(pools, hp)
	}
	p.mu.Unlock()

	for _, hp := range pools {
		hp.reapIdle(now)
	}
}

func (hp *hostPool) reapIdle(now time.Time) {
	if hp.opts.IdleTimeout <= 0 {
		return
	}
	hp.mu.Lock()
	defer hp.mu.Unlock()

	kept := hp.idle[:0]
	for _, s := range hp.idle {
		if now.Sub(s.lastUsed) > hp.opts.IdleTimeout {
			_ = s.Close()
			continue
		}
		kept = append(kept, s)
	}
	hp.idle = kept
}

// CloseAll terminates every session and every per-host pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, hp := range p.hosts {
		hp.mu.Lock()
		for _, s := range hp.idle {
			_ = s.Close()
		}
		hp.idle = nil
		hp.closed = true
		hp.mu.Unlock()
	}
}

// DefaultDialer returns a dialer using golang.org/x/crypto/ssh directly,
// resolving auth via ResolveAuth and the host-key callback per opts.
func DefaultDialer(host, addr string, opts Options) func(ctx context.Context) (*ssh.Client, error) {
	return func(ctx context.Context) (*ssh.Client, error) {
		resolved := sshconfig.Resolve(host, opts.SSHConfig)

		auths, err := ResolveAuth(host, opts.Auth, resolved)
		if err != nil {
			return nil, err
		}

		hostKeyCb, err := HostKeyCallback(opts.KnownHostsPath, opts.HostKeyStrict)
		if err != nil {
			return nil, streamyerrors.NewConnectionError(host, err.Error(), false, err)
		}

		user := opts.User
		if resolved.User != "" {
			user = resolved.User
		}
		if user == "" {
			user = config.LocalHost
		}

		clientConfig := &ssh.ClientConfig{
			User:            user,
			Auth:            auths,
			HostKeyCallback: hostKeyCb,
			Timeout:         opts.ConnectTimeout,
		}

		dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()

		type result struct {
			client *ssh.Client
			err    error
		}
		ch := make(chan result, 1)
		go func() {
			client, err := ssh.Dial("tcp", addr, clientConfig)
			ch <- result{client, err}
		}()

		select {
		case <-dialCtx.Done():
			return nil, streamyerrors.NewConnectionError(host, "dial timed out", false, dialCtx.Err())
		case r := <-ch:
			if r.err != nil {
				return nil, streamyerrors.NewConnectionError(host, r.err.Error(), false, r.err)
			}
			return r.client, nil
		}
	}
}
