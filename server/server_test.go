package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/ircord/ingest"
	"github.com/onnwee/ircord/mapping"
	"github.com/onnwee/ircord/relay"
	"github.com/onnwee/ircord/testutil"
)

func testHandlers(t *testing.T, ready bool) *Handlers {
	t.Helper()
	path := testutil.WriteStoreFile(t, map[string]any{
		"servers": []map[string]any{
			{
				"host": "irc.example.org", "port": 6697, "use_ssl": true,
				"nick": "relaybot", "password": "",
				"discord_channel_id": 100, "log_channel_id": 101,
				"channels": []map[string]any{
					{"name": "#general", "discord_channel_id": 200},
				},
			},
		},
		"special_channels": map[string]any{"log": 999},
		"guild_id":         42,
	})
	store, err := mapping.Load(path)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	mailbox := relay.NewMailbox()
	pool := ingest.NewPool(mailbox, ingest.NewConn)
	return NewHandlers(store, pool, mailbox, func() bool { return ready })
}

func TestHealthz(t *testing.T) {
	mux := NewMux(testHandlers(t, true))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing correlation id header")
	}
}

func TestReadyz(t *testing.T) {
	mux := NewMux(testHandlers(t, false))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with gateway down = %d, want 503", rec.Code)
	}

	mux = NewMux(testHandlers(t, true))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz with gateway up = %d, want 200", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	mux := NewMux(testHandlers(t, true))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Servers []struct {
			Host     string `json:"host"`
			State    string `json:"state"`
			Channels int    `json:"channels"`
		} `json:"servers"`
		MailboxDepth int `json:"mailbox_depth"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("status body not JSON: %v", err)
	}
	if len(resp.Servers) != 1 {
		t.Fatalf("got %d servers, want 1", len(resp.Servers))
	}
	if resp.Servers[0].Host != "irc.example.org" || resp.Servers[0].Channels != 1 {
		t.Errorf("unexpected server entry: %+v", resp.Servers[0])
	}
	if resp.Servers[0].State != "unknown" {
		t.Errorf("state for never-started adapter = %q, want unknown", resp.Servers[0].State)
	}
}

func TestStatusRejectsNonGet(t *testing.T) {
	mux := NewMux(testHandlers(t, true))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(testHandlers(t, true))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics = %d, want 200", rec.Code)
	}
}
