// Package testutil provides shared fakes for relay tests: a recording Discord
// sender, a scripted IRC connection, and mapping-store file helpers.
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// SentMessage records one FakeSender.SendMessage call.
type SentMessage struct {
	ChannelID uint64
	From      string
	Text      string
}

// CreatedChannel records one FakeSender.CreateChannel call.
type CreatedChannel struct {
	GuildID  uint64
	ParentID uint64
	Name     string
}

// FakeSender implements relay.Sender, recording every call. Error fields, when
// set, are returned by the corresponding method. OnCreate/OnSend hooks run
// before the call is recorded, for failure-injection ordering tests.
type FakeSender struct {
	mu sync.Mutex

	Sent     []SentMessage
	Created  []CreatedChannel
	Warnings []string

	NextChannelID uint64

	SendErr   error
	CreateErr error
	WarnErr   error

	OnSend   func(SentMessage)
	OnCreate func(CreatedChannel)
}

// NewFakeSender returns a sender that allocates channel ids from 9000 up.
func NewFakeSender() *FakeSender {
	return &FakeSender{NextChannelID: 9000}
}

func (f *FakeSender) SendMessage(_ context.Context, channelID uint64, from, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := SentMessage{ChannelID: channelID, From: from, Text: text}
	if f.OnSend != nil {
		f.OnSend(msg)
	}
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

func (f *FakeSender) CreateChannel(_ context.Context, guildID, parentID uint64, name string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := CreatedChannel{GuildID: guildID, ParentID: parentID, Name: name}
	if f.OnCreate != nil {
		f.OnCreate(ch)
	}
	if f.CreateErr != nil {
		return 0, f.CreateErr
	}
	f.Created = append(f.Created, ch)
	f.NextChannelID++
	return f.NextChannelID, nil
}

func (f *FakeSender) LogWarning(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WarnErr != nil {
		return f.WarnErr
	}
	f.Warnings = append(f.Warnings, text)
	return nil
}

// Calls returns snapshot copies of the recorded calls.
func (f *FakeSender) Calls() ([]SentMessage, []CreatedChannel, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Sent...),
		append([]CreatedChannel(nil), f.Created...),
		append([]string(nil), f.Warnings...)
}

// WriteStoreFile writes a mapping store JSON document into a temp dir and
// returns its path. v is marshaled as-is, so tests can write both valid
// stores and malformed shapes.
func WriteStoreFile(t *testing.T, v any) string {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal store file: %v", err)
	}
	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write store file: %v", err)
	}
	return path
}
