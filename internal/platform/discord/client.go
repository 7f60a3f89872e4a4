// Package discord adapts a discordgo session to the engine's chat surface.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
)

// memberPageSize is the guild member listing page size (API maximum).
const memberPageSize = 1000

// bulkDeleteMax is the most messages one bulk delete call accepts.
const bulkDeleteMax = 100

// Client implements platform.ChatClient on top of a discordgo session.
// Lookups prefer the session state cache and fall back to the REST API.
type Client struct {
	session *discordgo.Session
	log     *logger.Logger
}

// NewClient creates a new Discord chat client.
func NewClient(session *discordgo.Session, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	return &Client{session: session, log: log}
}

// GuildAvailable reports whether the guild is resolvable.
func (c *Client) GuildAvailable(guildID string) bool {
	if _, err := c.session.State.Guild(guildID); err == nil {
		return true
	}
	_, err := c.session.Guild(guildID)
	return err == nil
}

// MemberExists reports whether the user is currently a guild member.
func (c *Client) MemberExists(ctx context.Context, guildID, userID string) bool {
	if _, err := c.session.State.Member(guildID, userID); err == nil {
		return true
	}
	_, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	return err == nil
}

// SendMessage posts content and/or an embed to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string, embed *platform.Embed) error {
	send := &discordgo.MessageSend{Content: content}
	if embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toMessageEmbed(embed)}
	}
	_, err := c.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	return err
}

// SendDirectMessage delivers an embed to a user's DM channel.
func (c *Client) SendDirectMessage(ctx context.Context, userID, content string, embed *platform.Embed) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	return c.SendMessage(ctx, dm.ID, content, embed)
}

// DeleteMessage removes a single message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return c.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}

// AddRole grants a role to a guild member.
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// RemoveRole strips a role from a guild member.
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// RoleMembers lists the user ids currently holding a role, paging through
// the guild member list lazily.
func (c *Client) RoleMembers(ctx context.Context, guildID, roleID string) ([]string, error) {
	var holders []string
	after := ""
	for {
		members, err := c.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return holders, nil
		}
		for _, member := range members {
			for _, id := range member.Roles {
				if id == roleID {
					holders = append(holders, member.User.ID)
					break
				}
			}
		}
		if len(members) < memberPageSize {
			return holders, nil
		}
		after = members[len(members)-1].User.ID
	}
}

// ToggleChannelWrite opens or restricts send permission on a channel for a
// role. An empty roleID targets the everyone role, whose id equals the
// guild id. The returned flag reports whether the overwrite actually
// changed; a channel already in the desired state is left untouched.
func (c *Client) ToggleChannelWrite(ctx context.Context, guildID, channelID, roleID string, open bool) (bool, error) {
	if roleID == "" {
		roleID = guildID
	}

	channel, err := c.session.State.Channel(channelID)
	if err != nil {
		channel, err = c.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return false, err
		}
	}

	var allow, deny int64
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.ID == roleID && overwrite.Type == discordgo.PermissionOverwriteTypeRole {
			allow, deny = overwrite.Allow, overwrite.Deny
			break
		}
	}

	wantAllow, wantDeny := allow, deny
	if open {
		wantAllow |= discordgo.PermissionSendMessages
		wantDeny &^= discordgo.PermissionSendMessages
	} else {
		wantDeny |= discordgo.PermissionSendMessages
		wantAllow &^= discordgo.PermissionSendMessages
	}
	if wantAllow == allow && wantDeny == deny {
		return false, nil
	}

	err = c.session.ChannelPermissionSet(channelID, roleID,
		discordgo.PermissionOverwriteTypeRole, wantAllow, wantDeny,
		discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurgeChannel bulk-deletes up to limit recent non-pinned messages.
func (c *Client) PurgeChannel(ctx context.Context, channelID string, limit int) error {
	if limit <= 0 || limit > bulkDeleteMax {
		limit = bulkDeleteMax
	}
	messages, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		if !message.Pinned {
			ids = append(ids, message.ID)
		}
	}
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return c.session.ChannelMessageDelete(channelID, ids[0], discordgo.WithContext(ctx))
	default:
		return c.session.ChannelMessagesBulkDelete(channelID, ids, discordgo.WithContext(ctx))
	}
}

func toMessageEmbed(embed *platform.Embed) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
}

func jumpURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
