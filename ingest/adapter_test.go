package ingest

import (
	"testing"
	"time"

	"github.com/onnwee/ircord/mapping"
	"github.com/onnwee/ircord/relay"
)

func testAdapter(t *testing.T) (*Adapter, *relay.Mailbox) {
	t.Helper()
	mailbox := relay.NewMailbox()
	cfg := ServerConfig{
		Host:     "irc.example.org",
		Port:     6697,
		Nick:     "relaybot",
		Channels: []string{"#general"},
	}
	return NewAdapter(cfg, mailbox), mailbox
}

func drainOne(t *testing.T, mailbox *relay.Mailbox) relay.Event {
	t.Helper()
	if mailbox.Depth() != 1 {
		t.Fatalf("mailbox depth = %d, want exactly 1 event per line", mailbox.Depth())
	}
	ev, ok := mailbox.TryPop()
	if !ok {
		t.Fatal("mailbox empty")
	}
	return ev
}

func TestChannelMessage(t *testing.T) {
	a, mailbox := testAdapter(t)
	a.HandleLine(Line{
		Command: "PRIVMSG",
		Prefix:  "alice!alice@host.example",
		Target:  "#general",
		Text:    "hi",
		Raw:     ":alice!alice@host.example PRIVMSG #general :hi",
	})
	ev := drainOne(t, mailbox)
	pm, ok := ev.(relay.PrivateMessage)
	if !ok {
		t.Fatalf("got %T, want PrivateMessage", ev)
	}
	want := relay.PrivateMessage{Host: "irc.example.org", From: "alice", Channel: "#general", Message: "hi"}
	if pm != want {
		t.Errorf("got %+v, want %+v", pm, want)
	}
}

func TestDirectMessageRoutesBySenderNick(t *testing.T) {
	a, mailbox := testAdapter(t)
	// Target is our own nick: the sender's nick becomes the channel, so the
	// DM provisions its own Discord channel.
	a.HandleLine(Line{
		Command: "PRIVMSG",
		Prefix:  "alice!alice@host.example",
		Target:  "relaybot",
		Text:    "psst",
	})
	pm := drainOne(t, mailbox).(relay.PrivateMessage)
	if pm.Channel != "alice" {
		t.Errorf("DM routed to channel %q, want sender nick alice", pm.Channel)
	}
	if pm.From != "alice" {
		t.Errorf("DM attributed to %q, want alice", pm.From)
	}
}

func TestNonChatLineBecomesServerLog(t *testing.T) {
	a, mailbox := testAdapter(t)
	raw := ":irc.example.org 001 relaybot :Welcome to ExampleNet"
	a.HandleLine(Line{Command: "001", Prefix: "irc.example.org", Target: "relaybot", Text: "Welcome to ExampleNet", Raw: raw})
	ev := drainOne(t, mailbox)
	sl, ok := ev.(relay.ServerLog)
	if !ok {
		t.Fatalf("got %T, want ServerLog", ev)
	}
	if sl.Host != "irc.example.org" || sl.Message != raw {
		t.Errorf("got %+v", sl)
	}
}

func TestNickFromPrefix(t *testing.T) {
	cases := []struct {
		prefix string
		want   string
	}{
		{"alice!alice@host.example", "alice"},
		{"alice", "alice"},
		{"irc.example.org", "irc.example.org"},
		{"", ""},
		{"a!b!c@d", "a"},
	}
	for _, tc := range cases {
		if got := nickFromPrefix(tc.prefix); got != tc.want {
			t.Errorf("nickFromPrefix(%q) = %q, want %q", tc.prefix, got, tc.want)
		}
	}
}

func TestSnapshotServerIsDetached(t *testing.T) {
	srv := &mapping.Server{
		Host: "irc.example.org", Port: 6667, Nick: "relaybot",
		Channels: []*mapping.Channel{{Name: "#general", DiscordChannelID: 1}},
	}
	cfg := SnapshotServer(srv)
	if len(cfg.Channels) != 1 || cfg.Channels[0] != "#general" {
		t.Fatalf("snapshot channels = %v", cfg.Channels)
	}
	// Later store mutations must not leak into the snapshot.
	srv.Channels = append(srv.Channels, &mapping.Channel{Name: "#later", DiscordChannelID: 2})
	if len(cfg.Channels) != 1 {
		t.Error("snapshot observed a mutation of the live server entry")
	}
}

func TestNextBackoff(t *testing.T) {
	base := 2 * time.Second
	cap := 5 * time.Minute
	var prev time.Duration
	for attempt := 0; attempt < 20; attempt++ {
		got := nextBackoff(attempt, base, cap)
		if got < base {
			t.Errorf("attempt %d: backoff %v below base", attempt, got)
		}
		if got > cap {
			t.Errorf("attempt %d: backoff %v above cap", attempt, got)
		}
		if attempt > 0 && attempt < 5 && got+base < prev {
			t.Errorf("attempt %d: backoff %v shrank well below previous %v", attempt, got, prev)
		}
		prev = got
	}
	if got := nextBackoff(63, base, cap); got != cap {
		t.Errorf("overflowing shift returned %v, want cap", got)
	}
}
