// Package discord implements the outbound side of the relay over the Discord
// REST API. The gateway session is opened at startup (which also validates
// the bot token) but inbound Discord events are not consumed; the relay is
// one-way IRC to Discord.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Sender sends relay output to Discord and provisions channels on demand.
type Sender struct {
	session      *discordgo.Session
	logChannelID uint64
}

// NewSender opens a gateway session with the given bot token. logChannelID is
// the store's special log channel for operational warnings.
func NewSender(token string, logChannelID uint64) (*Sender, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord gateway: %w", err)
	}
	return &Sender{session: session, logChannelID: logChannelID}, nil
}

// Close shuts the gateway session down.
func (s *Sender) Close() error {
	return s.session.Close()
}

// Ready reports whether the gateway websocket is up; used by /readyz.
func (s *Sender) Ready() bool {
	return s.session != nil && s.session.DataReady
}

// SendMessage delivers text to channelID as "<from> text".
func (s *Sender) SendMessage(ctx context.Context, channelID uint64, from, text string) error {
	_, err := s.session.ChannelMessageSend(formatID(channelID), FormatMessage(from, text), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send message to channel %d: %w", channelID, err)
	}
	return nil
}

// CreateChannel provisions a text channel named name under parentID.
func (s *Sender) CreateChannel(ctx context.Context, guildID, parentID uint64, name string) (uint64, error) {
	ch, err := s.session.GuildChannelCreateComplex(formatID(guildID), discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: formatID(parentID),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("create channel %q in guild %d: %w", name, guildID, err)
	}
	id, err := strconv.ParseUint(ch.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse created channel id %q: %w", ch.ID, err)
	}
	slog.Info("created discord channel", slog.String("name", name), slog.String("id", ch.ID))
	return id, nil
}

// LogWarning delivers an operational diagnostic to the configured log channel.
func (s *Sender) LogWarning(ctx context.Context, text string) error {
	_, err := s.session.ChannelMessageSend(formatID(s.logChannelID), text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("log warning to channel %d: %w", s.logChannelID, err)
	}
	return nil
}

// FormatMessage renders one relayed chat line.
func FormatMessage(from, text string) string {
	return fmt.Sprintf("<%s> %s", from, text)
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
