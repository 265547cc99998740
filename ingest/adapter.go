// Package ingest owns the IRC side of the relay: one adapter per configured
// server, each consuming protocol lines from its connection and translating
// them into relay events. Adapters never touch the mapping store; they hold an
// immutable snapshot of the connection config taken at startup and push every
// event into the shared mailbox.
package ingest

import (
	"context"
	"strings"

	"github.com/onnwee/ircord/mapping"
	"github.com/onnwee/ircord/relay"
)

// Line is one inbound protocol line, normalized just enough for routing.
type Line struct {
	Command string // IRC command or numeric, e.g. "PRIVMSG", "NOTICE", "001"
	Prefix  string // sender prefix in nick!user@host form, may be empty
	Target  string // first parameter; for PRIVMSG the channel or nick
	Text    string // trailing text
	Raw     string // human-readable rendering of the whole line
}

// Conn is the wire-level IRC capability. Implementations connect,
// authenticate, join the initial channels, and call deliver for every inbound
// line until ctx is canceled or the connection fails.
type Conn interface {
	Run(ctx context.Context, deliver func(Line)) error
}

// ServerConfig is the immutable subset of a server entry an adapter needs to
// open its connection. Channels joined after startup (provisioned by the
// router) are not re-read from the live store.
type ServerConfig struct {
	Host     string
	Port     uint16
	UseSSL   bool
	Nick     string
	Password string
	Channels []string
}

// SnapshotServer copies the connection-relevant fields out of a store entry.
func SnapshotServer(srv *mapping.Server) ServerConfig {
	cfg := ServerConfig{
		Host:     srv.Host,
		Port:     srv.Port,
		UseSSL:   srv.UseSSL,
		Nick:     srv.Nick,
		Password: srv.Password,
		Channels: make([]string, 0, len(srv.Channels)),
	}
	for _, ch := range srv.Channels {
		cfg.Channels = append(cfg.Channels, ch.Name)
	}
	return cfg
}

// Adapter translates one connection's protocol lines into relay events.
type Adapter struct {
	cfg     ServerConfig
	mailbox *relay.Mailbox
}

// NewAdapter binds a config snapshot to the shared mailbox.
func NewAdapter(cfg ServerConfig, mailbox *relay.Mailbox) *Adapter {
	return &Adapter{cfg: cfg, mailbox: mailbox}
}

// HandleLine emits exactly one relay event for one protocol line.
//
// A PRIVMSG whose target is our own nick is a direct message; it routes with
// the sender's nick as the channel name, so DMs provision a personal Discord
// channel like any other channel. Every non-chat line becomes a ServerLog.
func (a *Adapter) HandleLine(l Line) {
	if l.Command == "PRIVMSG" {
		from := nickFromPrefix(l.Prefix)
		channel := l.Target
		if channel == a.cfg.Nick {
			channel = from
		}
		a.mailbox.Push(relay.PrivateMessage{
			Host:    a.cfg.Host,
			From:    from,
			Channel: channel,
			Message: l.Text,
		})
		return
	}
	a.mailbox.Push(relay.ServerLog{Host: a.cfg.Host, Message: l.Raw})
}

// nickFromPrefix extracts the nick from an IRC nick!user@host prefix. A prefix
// without the delimiter is already a bare nick (server names, for instance).
func nickFromPrefix(prefix string) string {
	if i := strings.IndexByte(prefix, '!'); i >= 0 {
		return prefix[:i]
	}
	return prefix
}
