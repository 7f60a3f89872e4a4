package discord

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/internal/service"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"go.uber.org/zap"
)

// handleTimeout bounds the work done for one gateway event.
const handleTimeout = 30 * time.Second

// Bridge feeds gateway message and reaction events into the registration
// engine. Each event is handled on discordgo's own dispatch goroutine.
type Bridge struct {
	session   *discordgo.Session
	allocator *service.SlotAllocator
	active    *service.ActiveChannels
	log       *logger.Logger
}

// NewBridge creates a new gateway bridge.
func NewBridge(session *discordgo.Session, allocator *service.SlotAllocator, active *service.ActiveChannels, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Get()
	}
	return &Bridge{
		session:   session,
		allocator: allocator,
		active:    active,
		log:       log,
	}
}

// Register attaches the gateway handlers to the session.
func (b *Bridge) Register() {
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onReactionAdd)
}

func (b *Bridge) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || m.Author == nil {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	msg := inboundFromMessage(m.Message)
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := b.allocator.HandleScrimMessage(ctx, msg); err != nil {
		b.log.Error("scrim registration failed",
			zap.String("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
	if err := b.allocator.HandleTourneyMessage(ctx, msg); err != nil {
		b.log.Error("tourney registration failed",
			zap.String("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (b *Bridge) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" {
		return
	}
	if s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	// Fetch the reacted message only for channels the engine cares about.
	if !b.active.Contains(domain.KindTourney, r.ChannelID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	message, err := s.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		b.log.Warn("failed to fetch reacted message",
			zap.String("channel_id", r.ChannelID),
			zap.String("message_id", r.MessageID),
			zap.Error(err),
		)
		return
	}
	if message.GuildID == "" {
		message.GuildID = r.GuildID
	}

	msg := inboundFromMessage(message)
	if err := b.allocator.HandleTourneyReaction(ctx, msg, r.UserID, r.Emoji.Name); err != nil {
		if errors.Is(err, service.ErrCancelNotImplemented) {
			b.log.Debug("ignoring cancel reaction", zap.String("message_id", r.MessageID))
			return
		}
		b.log.Error("tourney reaction handling failed",
			zap.String("channel_id", r.ChannelID),
			zap.String("message_id", r.MessageID),
			zap.Error(err),
		)
	}
}

// inboundFromMessage resolves a gateway message to the engine's plain shape.
func inboundFromMessage(m *discordgo.Message) *platform.InboundMessage {
	msg := &platform.InboundMessage{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		JumpURL:   jumpURL(m.GuildID, m.ChannelID, m.ID),
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorIsBot = m.Author.Bot
	}
	if m.Member != nil {
		msg.AuthorRoleIDs = m.Member.Roles
	}
	for _, user := range m.Mentions {
		msg.Mentions = append(msg.Mentions, platform.Mention{UserID: user.ID, Bot: user.Bot})
	}
	return msg
}
