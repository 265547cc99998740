// Package mapping holds the relay's durable state: which IRC servers we
// connect to and which Discord channel each IRC channel is bridged to.
// The store is loaded once at startup and rewritten in full after every
// mutation, keeping the on-disk JSON the single source of truth across
// restarts.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the full relay configuration. The router goroutine is the only
// writer at steady state; the mutex exists so the HTTP status handler can
// take consistent read snapshots.
type Store struct {
	mu sync.RWMutex

	Servers         []*Server       `json:"servers"`
	SpecialChannels SpecialChannels `json:"special_channels"`
	GuildID         uint64          `json:"guild_id"`
}

// SpecialChannels holds channel ids with a fixed operational role.
type SpecialChannels struct {
	// Log receives warnings that cannot be attributed to a single server,
	// e.g. events referencing an unknown host.
	Log uint64 `json:"log"`
}

// Server describes one IRC network connection target and its channel mappings.
type Server struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	UseSSL   bool   `json:"use_ssl"`
	Nick     string `json:"nick"`
	Password string `json:"password"`

	// DiscordChannelID is the category under which channels for this server
	// are created; LogChannelID receives this server's protocol traffic.
	DiscordChannelID uint64 `json:"discord_channel_id"`
	LogChannelID     uint64 `json:"log_channel_id"`

	Channels []*Channel `json:"channels"`
}

// Channel maps one IRC channel (or DM peer nick) to a Discord text channel.
type Channel struct {
	Name             string `json:"name"`
	DiscordChannelID uint64 `json:"discord_channel_id"`
}

// Load reads and validates the store file. A missing or malformed file is an
// error; callers treat that as fatal at startup rather than starting with an
// empty mapping and re-provisioning every channel.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}
	return &s, nil
}

// validate enforces the store invariants: hosts unique, channel names unique
// per server, Discord channel ids unique store-wide.
func (s *Store) validate() error {
	hosts := make(map[string]bool, len(s.Servers))
	ids := make(map[uint64]string)
	for _, srv := range s.Servers {
		if srv.Host == "" {
			return fmt.Errorf("server with empty host")
		}
		if hosts[srv.Host] {
			return fmt.Errorf("duplicate server host %q", srv.Host)
		}
		hosts[srv.Host] = true
		names := make(map[string]bool, len(srv.Channels))
		for _, ch := range srv.Channels {
			if names[ch.Name] {
				return fmt.Errorf("duplicate channel %q on server %q", ch.Name, srv.Host)
			}
			names[ch.Name] = true
			if prev, ok := ids[ch.DiscordChannelID]; ok {
				return fmt.Errorf("discord channel %d mapped twice (%q and %s/%q)", ch.DiscordChannelID, prev, srv.Host, ch.Name)
			}
			ids[ch.DiscordChannelID] = srv.Host + "/" + ch.Name
		}
	}
	return nil
}

// FindServer returns the server with the given host, or nil. Absence is a
// normal outcome (an adapter may outlive a config edit), not an error.
func (s *Store) FindServer(host string) *Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, srv := range s.Servers {
		if srv.Host == host {
			return srv
		}
	}
	return nil
}

// FindChannel returns the mapping for name within srv, or nil.
func (s *Store) FindChannel(srv *Server, name string) *Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range srv.Channels {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

// AddChannel appends a new mapping to srv. The caller must have checked that
// name is unmapped; no dedup happens here.
func (s *Store) AddChannel(srv *Server, name string, discordChannelID uint64) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := &Channel{Name: name, DiscordChannelID: discordChannelID}
	srv.Channels = append(srv.Channels, ch)
	return ch
}

// Persist writes the full store to path, replacing any prior content. The
// write goes through a temp file and rename so a crash mid-write cannot leave
// a truncated mapping file behind.
func (s *Store) Persist(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mapping-*.json")
	if err != nil {
		return fmt.Errorf("create temp mapping file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write mapping: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close mapping file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace mapping file: %w", err)
	}
	return nil
}

// ServerStatus is a read snapshot of one server's mapping state for /status.
type ServerStatus struct {
	Host     string `json:"host"`
	Channels int    `json:"channels"`
}

// Snapshot returns per-server channel counts without exposing live pointers.
func (s *Store) Snapshot() []ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServerStatus, 0, len(s.Servers))
	for _, srv := range s.Servers {
		out = append(out, ServerStatus{Host: srv.Host, Channels: len(srv.Channels)})
	}
	return out
}
