// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesRelayed     prometheus.Counter
	ServerLogsRelayed   prometheus.Counter
	EventsDropped       prometheus.Counter
	ChannelsProvisioned prometheus.Counter
	SendFailures        prometheus.Counter
	WarningsLogged      prometheus.Counter
	AdapterReconnects   prometheus.Counter

	// Histograms (seconds)
	EventDuration prometheus.Observer

	// Gauges
	MailboxDepthGauge prometheus.Gauge
	AdaptersUpGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_messages_total", Help: "Chat messages relayed to Discord"})
		ServerLogsRelayed = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_server_logs_total", Help: "Server protocol lines relayed to Discord log channels"})
		EventsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_events_dropped_total", Help: "Events dropped (full mailbox or failed delivery)"})
		ChannelsProvisioned = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_channels_provisioned_total", Help: "Discord channels created for newly seen IRC channels"})
		SendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_send_failures_total", Help: "Failed outbound Discord calls"})
		WarningsLogged = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_warnings_total", Help: "Operational warnings sent to the log channel"})
		AdapterReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_adapter_reconnects_total", Help: "IRC adapter reconnect attempts"})
		EventDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_event_duration_seconds", Help: "Router per-event handling duration seconds", Buckets: prometheus.DefBuckets})
		MailboxDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "relay_mailbox_depth", Help: "Events currently queued for the router"})
		AdaptersUpGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "relay_adapters_up", Help: "IRC adapters currently connected"})
	})
}

// Inc increments c if metrics are initialized (tests may skip Init).
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetMailboxDepth records the current router queue depth.
func SetMailboxDepth(n int) {
	if MailboxDepthGauge != nil {
		MailboxDepthGauge.Set(float64(n))
	}
}

// AddAdaptersUp moves the connected-adapter gauge by delta (+1/-1).
func AddAdaptersUp(delta float64) {
	if AdaptersUpGauge != nil {
		AdaptersUpGauge.Add(delta)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
