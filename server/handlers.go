// Package server exposes the HTTP API handlers.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/ircord/ingest"
	"github.com/onnwee/ircord/mapping"
	"github.com/onnwee/ircord/relay"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store   *mapping.Store
	pool    *ingest.Pool
	mailbox *relay.Mailbox
	ready   func() bool
	started time.Time
}

// NewHandlers creates a new Handlers instance. ready reports whether the
// outbound Discord session is up.
func NewHandlers(store *mapping.Store, pool *ingest.Pool, mailbox *relay.Mailbox, ready func() bool) *Handlers {
	return &Handlers{
		store:   store,
		pool:    pool,
		mailbox: mailbox,
		ready:   ready,
		started: time.Now(),
	}
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the Discord gateway session is open.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "discord_gateway"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports per-server adapter state and mapping counts.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type serverStatus struct {
		Host     string `json:"host"`
		State    string `json:"state"`
		Channels int    `json:"channels"`
	}

	states := h.pool.Snapshot()
	var servers []serverStatus
	for _, s := range h.store.Snapshot() {
		state := states[s.Host]
		if state == "" {
			state = "unknown"
		}
		servers = append(servers, serverStatus{Host: s.Host, State: state, Channels: s.Channels})
	}

	resp := map[string]any{
		"servers":        servers,
		"mailbox_depth":  h.mailbox.Depth(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
