package ingest

import (
	"context"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// TwitchHost is the host that selects the Twitch connection implementation.
// Twitch chat speaks IRC but requires its own token handshake and rejects the
// standard PASS/NickServ flow, so it gets a dedicated client.
const TwitchHost = "irc.chat.twitch.tv"

type twitchConn struct {
	cfg ServerConfig
}

// NewTwitchConn returns a Conn for Twitch chat. The server password is used
// as the oauth token (oauth:... form, per Twitch IRC auth).
func NewTwitchConn(cfg ServerConfig) Conn {
	return &twitchConn{cfg: cfg}
}

// NewConn picks the wire implementation for a server config.
func NewConn(cfg ServerConfig) Conn {
	if cfg.Host == TwitchHost {
		return NewTwitchConn(cfg)
	}
	return NewIRCConn(cfg)
}

func (c *twitchConn) Run(ctx context.Context, deliver func(Line)) error {
	client := twitch.NewClient(c.cfg.Nick, c.cfg.Password)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		deliver(Line{
			Command: "PRIVMSG",
			Prefix:  msg.User.Name,
			Target:  "#" + msg.Channel,
			Text:    msg.Message,
			Raw:     msg.Raw,
		})
	})
	// Whispers are Twitch's direct messages; target our own nick so the
	// adapter routes them through the DM path.
	client.OnWhisperMessage(func(msg twitch.WhisperMessage) {
		deliver(Line{
			Command: "PRIVMSG",
			Prefix:  msg.User.Name,
			Target:  c.cfg.Nick,
			Text:    msg.Message,
			Raw:     msg.Raw,
		})
	})
	client.OnNoticeMessage(func(msg twitch.NoticeMessage) {
		deliver(Line{Command: "NOTICE", Target: "#" + msg.Channel, Text: msg.Message, Raw: msg.Raw})
	})

	for _, ch := range c.cfg.Channels {
		client.Join(strings.TrimPrefix(ch, "#"))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Disconnect()
		case <-done:
		}
	}()

	return client.Connect()
}
