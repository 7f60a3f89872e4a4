package service

import (
	"context"
	"errors"
	"sync"

	"github.com/plovers390-cloud/ScrimX/internal/platform"
)

// ErrMockChatFailure is returned when the mock chat client is configured to fail
var ErrMockChatFailure = errors.New("mock chat failure")

// SentMessage records one SendMessage or SendDirectMessage call
type SentMessage struct {
	ChannelID string // empty for direct messages
	UserID    string // empty for channel messages
	Content   string
	Title     string
	Desc      string
}

// ReactionCall records one AddReaction call
type ReactionCall struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// RoleCall records one AddRole or RemoveRole call
type RoleCall struct {
	GuildID string
	UserID  string
	RoleID  string
}

// ToggleCall records one ToggleChannelWrite call
type ToggleCall struct {
	GuildID   string
	ChannelID string
	RoleID    string
	Open      bool
}

// PurgeCall records one PurgeChannel call
type PurgeCall struct {
	ChannelID string
	Limit     int
}

// MockChatClient is a mock implementation of platform.ChatClient
type MockChatClient struct {
	mu sync.Mutex

	Messages  []SentMessage
	DMs       []SentMessage
	Deleted   []string
	Reactions []ReactionCall
	Granted   []RoleCall
	Removed   []RoleCall
	Toggles   []ToggleCall
	Purges    []PurgeCall

	// GuildGone marks guilds as unavailable
	GuildGone map[string]bool
	// MissingMembers marks users as absent from every guild
	MissingMembers map[string]bool
	// RoleHolders maps role id to current member ids
	RoleHolders map[string][]string
	// ToggleChanged is returned by ToggleChannelWrite (default true)
	ToggleChanged *bool

	ShouldFail   bool
	FailureError error
}

// NewMockChatClient creates a new mock chat client
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{
		GuildGone:      make(map[string]bool),
		MissingMembers: make(map[string]bool),
		RoleHolders:    make(map[string][]string),
	}
}

func (m *MockChatClient) fail() error {
	if !m.ShouldFail {
		return nil
	}
	if m.FailureError != nil {
		return m.FailureError
	}
	return ErrMockChatFailure
}

// GuildAvailable reports whether the guild is resolvable
func (m *MockChatClient) GuildAvailable(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.GuildGone[guildID]
}

// MemberExists reports whether the user is a guild member
func (m *MockChatClient) MemberExists(ctx context.Context, guildID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.MissingMembers[userID]
}

// SendMessage records a channel message
func (m *MockChatClient) SendMessage(ctx context.Context, channelID, content string, embed *platform.Embed) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := SentMessage{ChannelID: channelID, Content: content}
	if embed != nil {
		msg.Title = embed.Title
		msg.Desc = embed.Description
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// SendDirectMessage records a direct message
func (m *MockChatClient) SendDirectMessage(ctx context.Context, userID, content string, embed *platform.Embed) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := SentMessage{UserID: userID, Content: content}
	if embed != nil {
		msg.Title = embed.Title
		msg.Desc = embed.Description
	}
	m.DMs = append(m.DMs, msg)
	return nil
}

// DeleteMessage records a message deletion
func (m *MockChatClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

// AddReaction records an emoji reaction
func (m *MockChatClient) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reactions = append(m.Reactions, ReactionCall{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

// AddRole records a role grant
func (m *MockChatClient) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Granted = append(m.Granted, RoleCall{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

// RemoveRole records a role removal
func (m *MockChatClient) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, RoleCall{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

// RoleMembers returns the configured holders of a role
func (m *MockChatClient) RoleMembers(ctx context.Context, guildID, roleID string) ([]string, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	holders := make([]string, len(m.RoleHolders[roleID]))
	copy(holders, m.RoleHolders[roleID])
	return holders, nil
}

// ToggleChannelWrite records a channel permission toggle
func (m *MockChatClient) ToggleChannelWrite(ctx context.Context, guildID, channelID, roleID string, open bool) (bool, error) {
	if err := m.fail(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Toggles = append(m.Toggles, ToggleCall{GuildID: guildID, ChannelID: channelID, RoleID: roleID, Open: open})
	if m.ToggleChanged != nil {
		return *m.ToggleChanged, nil
	}
	return true, nil
}

// PurgeChannel records a purge request
func (m *MockChatClient) PurgeChannel(ctx context.Context, channelID string, limit int) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Purges = append(m.Purges, PurgeCall{ChannelID: channelID, Limit: limit})
	return nil
}

// MessageCount returns the number of channel messages sent (for testing)
func (m *MockChatClient) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// ToggleCount returns the number of permission toggles (for testing)
func (m *MockChatClient) ToggleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Toggles)
}
