package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/irc.v4"
)

// ircConn is the generic IRC implementation of Conn, built on gopkg.in/irc.v4
// for line framing and message parsing. It dials (optionally over TLS),
// registers with the configured nick, identifies with NickServ when a
// password is set, and joins the initial channel list on welcome.
type ircConn struct {
	cfg ServerConfig
}

// NewIRCConn returns a Conn speaking standard IRC to cfg.Host:cfg.Port.
func NewIRCConn(cfg ServerConfig) Conn {
	return &ircConn{cfg: cfg}
}

func (c *ircConn) Run(ctx context.Context, deliver func(Line)) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(int(c.cfg.Port)))
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if c.cfg.UseSSL {
		tlsConn := tls.Client(netConn, &tls.Config{ServerName: c.cfg.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = netConn.Close()
			return fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		netConn = tlsConn
	}
	defer func() { _ = netConn.Close() }()

	client := irc.NewClient(netConn, irc.ClientConfig{
		Nick: c.cfg.Nick,
		User: c.cfg.Nick,
		Name: c.cfg.Nick,
		Handler: irc.HandlerFunc(func(cl *irc.Client, m *irc.Message) {
			if m.Command == "001" {
				if c.cfg.Password != "" {
					_ = cl.Writef("PRIVMSG NickServ :IDENTIFY %s", c.cfg.Password)
				}
				for _, ch := range c.cfg.Channels {
					_ = cl.Writef("JOIN %s", ch)
				}
			}
			deliver(lineFromMessage(m))
		}),
	})
	if err := client.RunContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("irc session %s: %w", addr, err)
	}
	return nil
}

func lineFromMessage(m *irc.Message) Line {
	l := Line{Command: m.Command, Raw: m.String()}
	if m.Prefix != nil {
		l.Prefix = m.Prefix.String()
	}
	if len(m.Params) > 0 {
		l.Target = m.Params[0]
		l.Text = m.Params[len(m.Params)-1]
	}
	return l
}
