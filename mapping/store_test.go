package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore() *Store {
	return &Store{
		Servers: []*Server{
			{
				Host:             "irc.example.org",
				Port:             6697,
				UseSSL:           true,
				Nick:             "relaybot",
				Password:         "hunter2",
				DiscordChannelID: 100,
				LogChannelID:     101,
				Channels: []*Channel{
					{Name: "#general", DiscordChannelID: 200},
					{Name: "#dev", DiscordChannelID: 201},
				},
			},
			{
				Host:         "irc.other.net",
				Port:         6667,
				Nick:         "relaybot",
				LogChannelID: 102,
			},
		},
		SpecialChannels: SpecialChannels{Log: 999},
		GuildID:         42,
	}
}

func writeStore(t *testing.T, s *Store) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := s.Persist(path); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}
	return path
}

func TestLoadRoundTrip(t *testing.T) {
	path := writeStore(t, testStore())
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(s.Servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(s.Servers))
	}
	srv := s.FindServer("irc.example.org")
	if srv == nil {
		t.Fatal("FindServer returned nil for known host")
	}
	if srv.Port != 6697 || !srv.UseSSL || srv.Nick != "relaybot" {
		t.Errorf("server fields did not survive round trip: %+v", srv)
	}
	ch := s.FindChannel(srv, "#dev")
	if ch == nil || ch.DiscordChannelID != 201 {
		t.Errorf("FindChannel(#dev) = %+v, want id 201", ch)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestLoadRejectsInvariantViolations(t *testing.T) {
	cases := []struct {
		name string
		s    *Store
		want string
	}{
		{
			name: "duplicate host",
			s: &Store{Servers: []*Server{
				{Host: "irc.example.org"},
				{Host: "irc.example.org"},
			}},
			want: "duplicate server host",
		},
		{
			name: "duplicate channel name on one server",
			s: &Store{Servers: []*Server{
				{Host: "irc.example.org", Channels: []*Channel{
					{Name: "#general", DiscordChannelID: 1},
					{Name: "#general", DiscordChannelID: 2},
				}},
			}},
			want: "duplicate channel",
		},
		{
			name: "discord channel id mapped twice across servers",
			s: &Store{Servers: []*Server{
				{Host: "a.example.org", Channels: []*Channel{{Name: "#x", DiscordChannelID: 7}}},
				{Host: "b.example.org", Channels: []*Channel{{Name: "#y", DiscordChannelID: 7}}},
			}},
			want: "mapped twice",
		},
		{
			name: "empty host",
			s:    &Store{Servers: []*Server{{Host: ""}}},
			want: "empty host",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeStore(t, tc.s)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestFindServerUnknownHost(t *testing.T) {
	s := testStore()
	if srv := s.FindServer("unknown.host"); srv != nil {
		t.Errorf("FindServer(unknown.host) = %+v, want nil", srv)
	}
}

func TestAddChannelThenPersist(t *testing.T) {
	s := testStore()
	path := writeStore(t, s)

	srv := s.FindServer("irc.other.net")
	ch := s.AddChannel(srv, "#newchan", 300)
	if ch.Name != "#newchan" || ch.DiscordChannelID != 300 {
		t.Fatalf("AddChannel returned %+v", ch)
	}
	if err := s.Persist(path); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after persist error: %v", err)
	}
	got := reloaded.FindChannel(reloaded.FindServer("irc.other.net"), "#newchan")
	if got == nil || got.DiscordChannelID != 300 {
		t.Errorf("persisted mapping missing after reload: %+v", got)
	}
}

func TestPersistWritesWireFieldNames(t *testing.T) {
	path := writeStore(t, testStore())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}
	for _, key := range []string{"servers", "special_channels", "guild_id"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("persisted file missing top-level key %q", key)
		}
	}
	servers, ok := raw["servers"].([]any)
	if !ok || len(servers) == 0 {
		t.Fatalf("servers not an array: %T", raw["servers"])
	}
	first, _ := servers[0].(map[string]any)
	for _, key := range []string{"host", "port", "use_ssl", "nick", "password", "discord_channel_id", "log_channel_id", "channels"} {
		if _, ok := first[key]; !ok {
			t.Errorf("server entry missing key %q", key)
		}
	}
}

func TestPersistLeavesNoTempFiles(t *testing.T) {
	s := testStore()
	path := writeStore(t, s)
	for i := 0; i < 3; i++ {
		if err := s.Persist(path); err != nil {
			t.Fatalf("Persist() error: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the mapping file in dir, got %d entries", len(entries))
	}
}

func TestSnapshot(t *testing.T) {
	s := testStore()
	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("got %d snapshot entries, want 2", len(snap))
	}
	if snap[0].Host != "irc.example.org" || snap[0].Channels != 2 {
		t.Errorf("unexpected snapshot entry: %+v", snap[0])
	}
}
