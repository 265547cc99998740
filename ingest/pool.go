package ingest

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/ircord/relay"
	"github.com/onnwee/ircord/telemetry"
)

// Adapter lifecycle states reported on /status.
const (
	StateConnecting = "connecting"
	StateConnected  = "connected"
	StateBackoff    = "backoff"
	StateStopped    = "stopped"
)

// ConnFactory builds a wire connection for one server config. The pool calls
// it once per connection attempt so a fresh Conn backs every session.
type ConnFactory func(cfg ServerConfig) Conn

// Pool supervises one adapter goroutine per server, keyed by host. A dropped
// connection restarts with exponential backoff instead of silently leaving
// the server disconnected; other adapters and the router are unaffected.
type Pool struct {
	mailbox *relay.Mailbox
	factory ConnFactory
	wg      sync.WaitGroup

	mu     sync.Mutex
	states map[string]string
}

// NewPool creates an empty pool pushing into mailbox, dialing via factory.
func NewPool(mailbox *relay.Mailbox, factory ConnFactory) *Pool {
	return &Pool{
		mailbox: mailbox,
		factory: factory,
		states:  make(map[string]string),
	}
}

// Start launches the supervised run loop for one server. Backoff knobs:
// IRC_BACKOFF_BASE (default 2s) and IRC_MAX_BACKOFF (default 5m).
func (p *Pool) Start(ctx context.Context, cfg ServerConfig) {
	base := 2 * time.Second
	if s := os.Getenv("IRC_BACKOFF_BASE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			base = d
		}
	}
	maxBackoff := 5 * time.Minute
	if s := os.Getenv("IRC_MAX_BACKOFF"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			maxBackoff = d
		}
	}

	p.setState(cfg.Host, StateConnecting)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.setState(cfg.Host, StateStopped)
		adapter := NewAdapter(cfg, p.mailbox)
		attempt := 0
		for {
			if ctx.Err() != nil {
				return
			}
			// The Conn does its own dialing, so the session counts as
			// connected only once the first protocol line arrives; until
			// then /status keeps showing the dial/handshake as connecting.
			p.setState(cfg.Host, StateConnecting)
			var connected atomic.Bool
			deliver := func(l Line) {
				if connected.CompareAndSwap(false, true) {
					p.setState(cfg.Host, StateConnected)
					telemetry.AddAdaptersUp(1)
				}
				adapter.HandleLine(l)
			}
			started := time.Now()
			err := p.factory(cfg).Run(ctx, deliver)
			if connected.Load() {
				telemetry.AddAdaptersUp(-1)
			}
			if ctx.Err() != nil {
				return
			}
			// A session that held for a while resets the backoff schedule.
			if time.Since(started) > time.Minute {
				attempt = 0
			}
			backoff := nextBackoff(attempt, base, maxBackoff)
			attempt++
			telemetry.Inc(telemetry.AdapterReconnects)
			slog.Warn("irc connection ended, reconnecting",
				slog.String("host", cfg.Host),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.Any("err", err))
			p.setState(cfg.Host, StateBackoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}()
}

// nextBackoff is exponential with jitter of up to base, capped at max.
func nextBackoff(attempt int, base, max time.Duration) time.Duration {
	backoff := base << uint(attempt)
	if backoff <= 0 || backoff > max {
		backoff = max
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	if backoff+jitter > max {
		return max
	}
	return backoff + jitter
}

// Wait blocks until every adapter goroutine has returned.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) setState(host, state string) {
	p.mu.Lock()
	p.states[host] = state
	p.mu.Unlock()
}

// Snapshot returns the current per-host adapter states.
func (p *Pool) Snapshot() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.states))
	for h, s := range p.states {
		out[h] = s
	}
	return out
}
