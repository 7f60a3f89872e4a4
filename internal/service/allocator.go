package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Embed colors.
const (
	colorSuccess = 0x2ECC71
	colorError   = 0xED4245
	colorInfo    = 0x3498DB
)

// ErrCancelNotImplemented is returned for the cross-emoji cancel reaction.
// Cancellation via reaction has no defined semantics yet.
var ErrCancelNotImplemented = errors.New("registration cancel via cross reaction is not implemented")

// SlotAllocator claims slot numbers for registration events. Allocation is
// serialized per event kind: one mutex guards all scrims, another all
// tourneys. A single lock per kind is acceptable because the critical
// section is one re-fetch plus one persistence write.
//
// The critical section follows a read-validate-claim protocol: the event
// record is re-fetched inside the lock and every validation runs against
// that fresh read, never a pre-lock snapshot. This closes the
// time-of-check/time-of-use gap against concurrent claims, closes and
// reopens.
type SlotAllocator struct {
	scrims     repository.ScrimRepository
	tourneys   repository.TourneyRepository
	slots      repository.SlotRepository
	gate       *RegistrationGate
	closer     *EventCloser
	chat       platform.ChatClient
	active     *ActiveChannels
	dispatcher *Dispatcher
	log        *logger.Logger

	scrimMu   sync.Mutex
	tourneyMu sync.Mutex

	claims  *telemetry.Counter
	denials *telemetry.Counter
}

// NewSlotAllocator creates a new slot allocator.
func NewSlotAllocator(
	scrims repository.ScrimRepository,
	tourneys repository.TourneyRepository,
	slots repository.SlotRepository,
	gate *RegistrationGate,
	closer *EventCloser,
	chat platform.ChatClient,
	active *ActiveChannels,
	dispatcher *Dispatcher,
	log *logger.Logger,
) *SlotAllocator {
	if log == nil {
		log = logger.Get()
	}
	claims, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "scrimx.slots.claimed",
		Description: "Slots successfully claimed",
		Unit:        "{slot}",
	})
	denials, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "scrimx.registrations.denied",
		Description: "Registrations denied by business rules",
		Unit:        "{registration}",
	})
	return &SlotAllocator{
		scrims:     scrims,
		tourneys:   tourneys,
		slots:      slots,
		gate:       gate,
		closer:     closer,
		chat:       chat,
		active:     active,
		dispatcher: dispatcher,
		log:        log,
		claims:     claims,
		denials:    denials,
	}
}

// WithScrimLock runs fn while holding the scrim allocation lock. Used by the
// autoclean pass so a purge or role strip never races a concurrent claim.
func (a *SlotAllocator) WithScrimLock(fn func()) {
	a.scrimMu.Lock()
	defer a.scrimMu.Unlock()
	fn()
}

// HandleScrimMessage processes one inbound message on a scrim registration
// channel. A lost capacity race is a defined outcome, not an error; only
// persistence failures propagate.
func (a *SlotAllocator) HandleScrimMessage(ctx context.Context, msg *platform.InboundMessage) error {
	if !a.active.Contains(domain.KindScrim, msg.ChannelID) {
		return nil
	}

	scrim, err := a.scrims.GetByChannelID(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if scrim == nil {
		// Record deleted underneath the index.
		a.active.Remove(ctx, domain.KindScrim, msg.ChannelID)
		return nil
	}

	verdict, err := a.gate.CheckScrim(ctx, scrim, msg)
	if err != nil {
		return err
	}
	if verdict.Ignore {
		return nil
	}
	if verdict.Deny != "" {
		a.reject(ctx, domain.KindScrim, scrim.ID, scrim.GuildID, msg, verdict.Deny,
			scrim.RequiredMentions, scrim.AutodeleteRejected, domain.DefaultCrossEmoji)
		return nil
	}

	slot, shouldClose, err := a.claimScrimSlot(ctx, scrim.ID, msg, verdict)
	if err != nil {
		return err
	}
	if slot == nil {
		// Pool exhausted or event closed concurrently; first come first
		// served, no queueing.
		return nil
	}

	// Side effects run outside the lock and only after the persisted claim.
	if err := a.chat.AddRole(ctx, scrim.GuildID, msg.AuthorID, scrim.RoleID); err != nil {
		a.log.Warn("failed to grant eligibility role",
			zap.String("user_id", msg.AuthorID), zap.Error(err))
	}
	if err := a.chat.AddReaction(ctx, msg.ChannelID, msg.ID, domain.DefaultCheckEmoji); err != nil {
		a.log.Warn("failed to add acknowledgement reaction", zap.Error(err))
	}

	a.claims.Inc(ctx, attribute.String("kind", string(domain.KindScrim)))
	a.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogSuccess,
		EventKind: domain.KindScrim,
		EventID:   scrim.ID,
		GuildID:   scrim.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Fields:    map[string]any{"slot_num": slot.Num, "team_name": slot.TeamName},
	})

	if shouldClose {
		return a.closer.CloseScrim(ctx, scrim.ID)
	}
	return nil
}

// claimScrimSlot is the scrim critical section. It returns the persisted
// slot, or nil when the race was lost, plus whether the claim depleted the
// pool to the close threshold. The close decision is made here, inside the
// same critical section as the claim that caused it.
func (a *SlotAllocator) claimScrimSlot(ctx context.Context, scrimID int64, msg *platform.InboundMessage, verdict *GateVerdict) (*domain.AssignedSlot, bool, error) {
	a.scrimMu.Lock()
	defer a.scrimMu.Unlock()

	scrim, err := a.scrims.GetByID(ctx, scrimID)
	if err != nil {
		return nil, false, err
	}
	if scrim == nil || scrim.Closed() {
		return nil, false, nil
	}
	if len(scrim.AvailableSlots) == 0 {
		return nil, false, nil
	}

	num := scrim.AvailableSlots[0]
	for _, n := range scrim.AvailableSlots {
		if n < num {
			num = n
		}
	}

	slot := &domain.AssignedSlot{
		EventKind: domain.KindScrim,
		EventID:   scrim.ID,
		Num:       num,
		LeaderID:  msg.AuthorID,
		TeamName:  verdict.TeamName,
		Members:   verdict.Members,
		MessageID: msg.ID,
		JumpURL:   msg.JumpURL,
		CreatedAt: time.Now(),
	}
	if err := a.slots.Create(ctx, slot); err != nil {
		return nil, false, err
	}
	if err := a.scrims.RemoveAvailableSlot(ctx, scrim.ID, num); err != nil {
		return nil, false, err
	}

	// The window closes when the pool drops to one remaining number, not
	// when it is fully exhausted. The last number is held back on purpose.
	remaining := len(scrim.AvailableSlots) - 1
	return slot, remaining <= 1, nil
}

// HandleTourneyMessage processes one inbound message on a tourney
// registration channel.
func (a *SlotAllocator) HandleTourneyMessage(ctx context.Context, msg *platform.InboundMessage) error {
	if !a.active.Contains(domain.KindTourney, msg.ChannelID) {
		return nil
	}

	tourney, err := a.tourneys.GetByChannelID(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if tourney == nil {
		a.active.Remove(ctx, domain.KindTourney, msg.ChannelID)
		return nil
	}

	verdict, err := a.gate.CheckTourney(ctx, tourney, msg)
	if err != nil {
		return err
	}
	if verdict.Ignore {
		return nil
	}
	if verdict.Deny != "" {
		a.reject(ctx, domain.KindTourney, tourney.ID, tourney.GuildID, msg, verdict.Deny,
			tourney.RequiredMentions, tourney.AutodeleteRejected, tourney.Cross())
		return nil
	}

	slot, shouldClose, deny, err := a.claimTourneySlot(ctx, tourney.ID, msg.AuthorID, verdict.TeamName, verdict.Members, msg.ID, msg.JumpURL, false)
	if err != nil {
		return err
	}
	if deny != "" {
		a.reject(ctx, domain.KindTourney, tourney.ID, tourney.GuildID, msg, deny,
			tourney.RequiredMentions, tourney.AutodeleteRejected, tourney.Cross())
		return nil
	}

	a.finalizeTourneySlot(ctx, tourney, slot, msg.ChannelID, msg.ID)
	if shouldClose {
		return a.closer.CloseTourney(ctx, tourney.ID)
	}
	return nil
}

// HandleTourneyReaction processes an emoji reaction on a message in a
// tourney registration channel. A moderator adding the check emoji to an
// unregistered message force-registers it, skipping the duplicate-name
// rule. The cross emoji is reserved for cancellation, which has no
// semantics yet.
func (a *SlotAllocator) HandleTourneyReaction(ctx context.Context, msg *platform.InboundMessage, reactorID, emoji string) error {
	if !a.active.Contains(domain.KindTourney, msg.ChannelID) {
		return nil
	}

	tourney, err := a.tourneys.GetByChannelID(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if tourney == nil {
		a.active.Remove(ctx, domain.KindTourney, msg.ChannelID)
		return nil
	}

	switch emoji {
	case tourney.Cross():
		return ErrCancelNotImplemented
	case tourney.Check():
	default:
		return nil
	}

	if tourney.ModRoleID != "" {
		mods, err := a.chat.RoleMembers(ctx, tourney.GuildID, tourney.ModRoleID)
		if err != nil {
			a.log.Warn("failed to resolve moderator role members", zap.Error(err))
			return nil
		}
		isMod := false
		for _, id := range mods {
			if id == reactorID {
				isMod = true
				break
			}
		}
		if !isMod {
			return nil
		}
	}

	existing, err := a.slots.GetByMessageID(ctx, msg.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	teamName, found := ExtractTeamName(msg.Content)
	if !found {
		teamName = fmt.Sprintf("%s's team", msg.AuthorID)
	}

	slot, shouldClose, deny, err := a.claimTourneySlot(ctx, tourney.ID, msg.AuthorID, teamName, claimantSet(msg), msg.ID, msg.JumpURL, true)
	if err != nil {
		return err
	}
	if deny == domain.DenyFull {
		embed := &platform.Embed{Description: "Slots are already full.", Color: colorError}
		if err := a.chat.SendMessage(ctx, msg.ChannelID, "", embed); err != nil {
			a.log.Warn("failed to post full notice", zap.Error(err))
		}
		return nil
	}
	if deny != "" || slot == nil {
		return nil
	}

	a.finalizeTourneySlot(ctx, tourney, slot, msg.ChannelID, msg.ID)
	if shouldClose {
		return a.closer.CloseTourney(ctx, tourney.ID)
	}
	return nil
}

// claimTourneySlot is the tourney critical section. Slot numbers are a
// monotonic counter: one more than the highest existing number, capped at
// total_slots. The duplicate-name rule is checked here against the
// authoritative slot list; skipDupCheck bypasses it for the moderator
// reaction path.
func (a *SlotAllocator) claimTourneySlot(ctx context.Context, tourneyID int64, leaderID, teamName string, members []string, messageID, jumpURL string, skipDupCheck bool) (*domain.AssignedSlot, bool, domain.DenyReason, error) {
	a.tourneyMu.Lock()
	defer a.tourneyMu.Unlock()

	tourney, err := a.tourneys.GetByID(ctx, tourneyID)
	if err != nil {
		return nil, false, "", err
	}
	if tourney == nil || tourney.Closed() {
		return nil, false, "", nil
	}

	if tourney.NoDuplicateName && !skipDupCheck {
		existing, err := a.slots.ListByEvent(ctx, domain.KindTourney, tourney.ID)
		if err != nil {
			return nil, false, "", err
		}
		normalized := Normalize(teamName)
		for _, s := range existing {
			if Normalize(s.TeamName) == normalized {
				return nil, false, domain.DenyDuplicateName, nil
			}
		}
	}

	count, err := a.slots.CountByEvent(ctx, domain.KindTourney, tourney.ID)
	if err != nil {
		return nil, false, "", err
	}
	if count >= tourney.TotalSlots {
		return nil, false, domain.DenyFull, nil
	}

	highest, err := a.slots.HighestNum(ctx, domain.KindTourney, tourney.ID)
	if err != nil {
		return nil, false, "", err
	}

	slot := &domain.AssignedSlot{
		EventKind: domain.KindTourney,
		EventID:   tourney.ID,
		Num:       highest + 1,
		LeaderID:  leaderID,
		TeamName:  teamName,
		Members:   members,
		MessageID: messageID,
		JumpURL:   jumpURL,
		CreatedAt: time.Now(),
	}
	if err := a.slots.Create(ctx, slot); err != nil {
		return nil, false, "", err
	}

	return slot, count+1 >= tourney.TotalSlots, "", nil
}

// finalizeTourneySlot runs the post-claim side effects: role grant, check
// reaction, the configured success DM and the success log. All chat calls
// are best-effort.
func (a *SlotAllocator) finalizeTourneySlot(ctx context.Context, tourney *domain.Tourney, slot *domain.AssignedSlot, channelID, messageID string) {
	if err := a.chat.AddRole(ctx, tourney.GuildID, slot.LeaderID, tourney.RoleID); err != nil {
		a.log.Warn("failed to grant eligibility role",
			zap.String("user_id", slot.LeaderID), zap.Error(err))
	}
	if err := a.chat.AddReaction(ctx, channelID, messageID, tourney.Check()); err != nil {
		a.log.Warn("failed to add acknowledgement reaction", zap.Error(err))
	}
	if tourney.SuccessMessage != "" {
		embed := &platform.Embed{
			Title:       tourney.Name,
			Description: tourney.SuccessMessage,
			Color:       colorSuccess,
		}
		if err := a.chat.SendDirectMessage(ctx, slot.LeaderID, "", embed); err != nil {
			a.log.Warn("failed to deliver success message",
				zap.String("user_id", slot.LeaderID), zap.Error(err))
		}
	}

	a.claims.Inc(ctx, attribute.String("kind", string(domain.KindTourney)))
	a.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogSuccess,
		EventKind: domain.KindTourney,
		EventID:   tourney.ID,
		GuildID:   tourney.GuildID,
		ChannelID: channelID,
		UserID:    slot.LeaderID,
		Fields:    map[string]any{"slot_num": slot.Num, "team_name": slot.TeamName},
	})
}

// reject surfaces a business denial to the sender. Denials are notices,
// never errors: a reason-specific embed (except bans, which only get the
// cross reaction), the cross reaction, optional deletion of the rejected
// message, and a deny log for audit consumers.
func (a *SlotAllocator) reject(ctx context.Context, kind domain.EventKind, eventID int64, guildID string, msg *platform.InboundMessage, reason domain.DenyReason, requiredMentions int, autodelete bool, crossEmoji string) {
	a.denials.Inc(ctx,
		attribute.String("kind", string(kind)),
		attribute.String("reason", string(reason)),
	)

	if notice := denyNotice(reason, requiredMentions); notice != "" {
		embed := &platform.Embed{Description: notice, Color: colorError}
		if err := a.chat.SendMessage(ctx, msg.ChannelID, fmt.Sprintf("<@%s>", msg.AuthorID), embed); err != nil {
			a.log.Warn("failed to post rejection notice", zap.Error(err))
		}
	}
	if err := a.chat.AddReaction(ctx, msg.ChannelID, msg.ID, crossEmoji); err != nil {
		a.log.Warn("failed to add rejection reaction", zap.Error(err))
	}
	if autodelete {
		if err := a.chat.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
			a.log.Warn("failed to delete rejected message", zap.Error(err))
		}
	}

	a.dispatcher.Dispatch(ctx, &LogEntry{
		Kind:      domain.LogDeny,
		EventKind: kind,
		EventID:   eventID,
		GuildID:   guildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Reason:    string(reason),
	})
}

// denyNotice maps a deny reason to its user-facing message. An empty string
// means no channel notice is posted for that reason.
func denyNotice(reason domain.DenyReason, requiredMentions int) string {
	switch reason {
	case domain.DenyBadMessage:
		return "Registration cannot be taken from this message."
	case domain.DenyNotEnoughTags:
		return fmt.Sprintf("You must mention %d teammate(s) to register.", requiredMentions)
	case domain.DenyNoTeamName:
		return "A team name is required to register."
	case domain.DenyDuplicateName:
		return "A team with this name is already registered."
	case domain.DenyMultiRegister:
		return "You have already registered. Multiple registrations are not allowed."
	case domain.DenyFull:
		return "Slots are already full."
	case domain.DenyBanned:
		// Banned senders get the cross reaction only.
		return ""
	}
	return ""
}
