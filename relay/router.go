package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/onnwee/ircord/mapping"
	"github.com/onnwee/ircord/telemetry"
)

// Sender is the outbound Discord capability the router drives. Implemented
// over the real Discord client in the discord package and by a fake in tests.
type Sender interface {
	// SendMessage delivers text to channelID, attributed to from.
	SendMessage(ctx context.Context, channelID uint64, from, text string) error
	// CreateChannel provisions a new text channel under parentID and returns its id.
	CreateChannel(ctx context.Context, guildID, parentID uint64, name string) (uint64, error)
	// LogWarning delivers an operational diagnostic to the configured log channel.
	LogWarning(ctx context.Context, text string) error
}

// Router is the single consumer of the mailbox and the only goroutine that
// mutates the mapping store. It handles one event fully (lookup, provisioning,
// persistence, delivery) before taking the next, which is what makes the
// provisioning sequence safe without locking inside the store logic.
type Router struct {
	store        *mapping.Store
	storePath    string
	sender       Sender
	mailbox      *Mailbox
	sendTimeout  time.Duration
	drainTimeout time.Duration
}

// NewRouter wires the router to its store, store file path, sender, and mailbox.
// RELAY_SEND_TIMEOUT bounds each outbound Discord call (default 10s) so one
// stalled call cannot wedge the loop indefinitely; RELAY_DRAIN_TIMEOUT bounds
// the whole shutdown drain (default 30s).
func NewRouter(store *mapping.Store, storePath string, sender Sender, mailbox *Mailbox) *Router {
	timeout := 10 * time.Second
	if s := os.Getenv("RELAY_SEND_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			timeout = d
		}
	}
	drain := 30 * time.Second
	if s := os.Getenv("RELAY_DRAIN_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			drain = d
		}
	}
	return &Router{
		store:        store,
		storePath:    storePath,
		sender:       sender,
		mailbox:      mailbox,
		sendTimeout:  timeout,
		drainTimeout: drain,
	}
}

// Run drains the mailbox until it is sealed. Cancellation alone does not end
// the loop: adapters may still be winding down and pushing, so shutdown is
// cancel, stop the producers, Seal, and only then does Run finish draining
// and return. The post-cancel drain is bounded by the drain timeout.
func (r *Router) Run(ctx context.Context) {
	slog.Info("router started", slog.Int("mailbox_cap", cap(r.mailbox.ch)))
	for {
		select {
		case <-ctx.Done():
			r.drain()
			slog.Info("router stopped")
			return
		case ev, ok := <-r.mailbox.ch:
			if !ok {
				slog.Info("router stopped")
				return
			}
			telemetry.SetMailboxDepth(len(r.mailbox.ch))
			r.handle(ctx, ev)
		}
	}
}

// drain keeps processing events after cancellation until the mailbox is
// sealed and empty. Outbound calls keep their per-call timeouts via
// context.Background. Past the drain deadline (a producer failing to stop)
// whatever is still queued is dropped and counted rather than delivered.
func (r *Router) drain() {
	deadline := time.NewTimer(r.drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-r.mailbox.ch:
			if !ok {
				return
			}
			r.handle(context.Background(), ev)
		case <-deadline.C:
			for {
				if _, ok := r.mailbox.TryPop(); !ok {
					slog.Warn("drain deadline reached with producers still running")
					return
				}
				telemetry.Inc(telemetry.EventsDropped)
			}
		}
	}
}

// handle dispatches one event. Outbound failures are per-event: logged,
// counted, and the event dropped; the loop never dies for a failed delivery.
func (r *Router) handle(ctx context.Context, ev Event) {
	telemetry.TimeFunc(telemetry.EventDuration, func() {
		switch ev := ev.(type) {
		case PrivateMessage:
			sctx, span := telemetry.StartSpan(ctx, "router", "relay.privmsg", telemetry.EventAttrs("privmsg", ev.Host, ev.Channel)...)
			defer span.End()
			if err := r.handlePrivateMessage(sctx, ev); err != nil {
				telemetry.RecordError(span, err)
				telemetry.Inc(telemetry.SendFailures)
				telemetry.Inc(telemetry.EventsDropped)
				slog.Error("privmsg relay failed", slog.String("host", ev.Host), slog.String("channel", ev.Channel), slog.Any("err", err))
			}
		case ServerLog:
			sctx, span := telemetry.StartSpan(ctx, "router", "relay.serverlog", telemetry.EventAttrs("serverlog", ev.Host, "")...)
			defer span.End()
			if err := r.handleServerLog(sctx, ev); err != nil {
				telemetry.RecordError(span, err)
				telemetry.Inc(telemetry.SendFailures)
				telemetry.Inc(telemetry.EventsDropped)
				slog.Error("server log relay failed", slog.String("host", ev.Host), slog.Any("err", err))
			}
		default:
			slog.Error("unhandled event variant", slog.String("type", fmt.Sprintf("%T", ev)))
		}
	})
}

func (r *Router) handleServerLog(ctx context.Context, ev ServerLog) error {
	srv := r.store.FindServer(ev.Host)
	if srv == nil {
		return r.warnUnknownHost(ctx, ev.Host)
	}
	sctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	if err := r.sender.SendMessage(sctx, srv.LogChannelID, "SYSTEM", ev.Message); err != nil {
		return fmt.Errorf("send server log to channel %d: %w", srv.LogChannelID, err)
	}
	telemetry.Inc(telemetry.ServerLogsRelayed)
	return nil
}

func (r *Router) handlePrivateMessage(ctx context.Context, ev PrivateMessage) error {
	srv := r.store.FindServer(ev.Host)
	if srv == nil {
		return r.warnUnknownHost(ctx, ev.Host)
	}

	ch := r.store.FindChannel(srv, ev.Channel)
	if ch == nil {
		var err error
		ch, err = r.provision(ctx, srv, ev.Channel)
		if err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	if err := r.sender.SendMessage(sctx, ch.DiscordChannelID, ev.From, ev.Message); err != nil {
		return fmt.Errorf("send to channel %d: %w", ch.DiscordChannelID, err)
	}
	telemetry.Inc(telemetry.MessagesRelayed)
	return nil
}

// provision creates the Discord channel for a newly seen IRC channel and
// records the mapping. The store hits disk before the triggering message is
// sent, so a mapping that was relied on can never be lost to a crash between
// creation and delivery.
func (r *Router) provision(ctx context.Context, srv *mapping.Server, name string) (*mapping.Channel, error) {
	cctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	id, err := r.sender.CreateChannel(cctx, r.store.GuildID, srv.DiscordChannelID, name)
	if err != nil {
		return nil, fmt.Errorf("create channel %q under %d: %w", name, srv.DiscordChannelID, err)
	}
	ch := r.store.AddChannel(srv, name, id)
	if err := r.store.Persist(r.storePath); err != nil {
		// The mapping stays in memory, so this process will not provision the
		// channel twice; a restart before the next successful persist would.
		slog.Error("persist after provisioning failed", slog.String("host", srv.Host), slog.String("channel", name), slog.Any("err", err))
	}
	telemetry.Inc(telemetry.ChannelsProvisioned)
	slog.Info("provisioned discord channel", slog.String("host", srv.Host), slog.String("channel", name), slog.Uint64("discord_channel_id", id))
	return ch, nil
}

func (r *Router) warnUnknownHost(ctx context.Context, host string) error {
	telemetry.Inc(telemetry.WarningsLogged)
	wctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	if err := r.sender.LogWarning(wctx, fmt.Sprintf("Could not find server by host %q", host)); err != nil {
		return fmt.Errorf("log unknown-host warning: %w", err)
	}
	return nil
}
