// Command ircord relays chat from IRC networks into a Discord guild.
// It:
//   - Loads configuration and initializes structured logging.
//   - Loads the channel-mapping store from the configured JSON file.
//   - Opens the Discord gateway session used for outbound sends.
//   - Starts one supervised IRC adapter per configured server and the single
//     router goroutine that drains their shared mailbox.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/ircord/config"
	"github.com/onnwee/ircord/discord"
	"github.com/onnwee/ircord/ingest"
	"github.com/onnwee/ircord/mapping"
	"github.com/onnwee/ircord/relay"
	"github.com/onnwee/ircord/server"
	"github.com/onnwee/ircord/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("ircord", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Mapping store: a missing or malformed file is fatal. Starting with an
	// empty store would re-provision every channel the guild already has.
	store, err := mapping.Load(cfg.ConfigFile)
	if err != nil {
		slog.Error("failed to load mapping store", slog.String("path", cfg.ConfigFile), slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("mapping store loaded",
		slog.String("path", cfg.ConfigFile),
		slog.Int("servers", len(store.Servers)),
		slog.Uint64("guild_id", store.GuildID))

	// Discord session. Opening it validates the bot token up front.
	sender, err := discord.NewSender(cfg.DiscordToken, store.SpecialChannels.Log)
	if err != nil {
		slog.Error("failed to open discord session", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := sender.Close(); err != nil {
			slog.Error("failed to close discord session", slog.Any("err", err))
		}
	}()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Router: the single consumer of the mailbox and sole mutator of the store.
	mailbox := relay.NewMailbox()
	router := relay.NewRouter(store, cfg.ConfigFile, sender, mailbox)
	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		router.Run(ctx)
	}()

	// One supervised IRC adapter per server, each with an immutable snapshot
	// of its connection config.
	pool := ingest.NewPool(mailbox, ingest.NewConn)
	for _, srv := range store.Servers {
		snapshot := ingest.SnapshotServer(srv)
		slog.Info("starting irc adapter", slog.String("host", snapshot.Host), slog.Int("channels", len(snapshot.Channels)))
		pool.Start(ctx, snapshot)
	}

	// HTTP server (health/readiness/status/metrics)
	handlers := server.NewHandlers(store, pool, mailbox, sender.Ready)
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal. Producers stop first; sealing the mailbox
	// after that point means nothing can slip in unprocessed, and the router
	// exits once the remaining queue is drained.
	<-ctx.Done()
	slog.Info("shutting down")
	pool.Wait()
	mailbox.Seal()
	<-routerDone
}
