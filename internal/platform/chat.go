// Package platform defines the narrow surface the engine consumes from the
// chat platform. Deleted guilds, channels, roles and members are reported as
// absent, never as fatal errors; callers decide whether absence matters.
package platform

import "context"

// Mention is a user referenced in an inbound message.
type Mention struct {
	UserID string
	Bot    bool
}

// InboundMessage is a candidate registration message as delivered by the
// gateway, resolved to plain identifiers before it reaches the engine.
type InboundMessage struct {
	ID            string
	GuildID       string
	ChannelID     string
	AuthorID      string
	AuthorIsBot   bool
	AuthorRoleIDs []string
	Content       string
	Mentions      []Mention
	JumpURL       string
}

// AuthorHasRole reports whether the author holds the given role.
func (m *InboundMessage) AuthorHasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range m.AuthorRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Embed is the platform-agnostic shape of a rich message.
type Embed struct {
	Title       string
	Description string
	Color       int
}

// ChatClient is the chat-platform surface consumed by the engine.
//
// All mutating calls are best-effort from the engine's point of view: a
// missing permission or deleted target returns an error the caller either
// suppresses (non-critical side effects) or reports, but never treats as
// process-fatal.
type ChatClient interface {
	// GuildAvailable reports whether the guild is resolvable. False means
	// the guild was deleted or the session cannot see it.
	GuildAvailable(guildID string) bool

	// MemberExists reports whether the user is currently a guild member.
	MemberExists(ctx context.Context, guildID, userID string) bool

	// SendMessage posts content and/or an embed to a channel.
	SendMessage(ctx context.Context, channelID, content string, embed *Embed) error

	// SendDirectMessage delivers an embed to a user's DM channel.
	SendDirectMessage(ctx context.Context, userID, content string, embed *Embed) error

	// DeleteMessage removes a single message.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// AddReaction adds an emoji reaction to a message.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// AddRole grants a role to a guild member.
	AddRole(ctx context.Context, guildID, userID, roleID string) error

	// RemoveRole strips a role from a guild member.
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error

	// RoleMembers lists the user ids currently holding a role.
	RoleMembers(ctx context.Context, guildID, roleID string) ([]string, error)

	// ToggleChannelWrite opens or restricts send permission on a channel for
	// a role (empty roleID means the default everyone role). The returned
	// flag reports whether the overwrite actually changed.
	ToggleChannelWrite(ctx context.Context, guildID, channelID, roleID string, open bool) (changed bool, err error)

	// PurgeChannel bulk-deletes up to limit recent non-pinned messages.
	PurgeChannel(ctx context.Context, channelID string, limit int) error
}
