package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/platform"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"golang.org/x/text/unicode/norm"
)

// maxTeamNameLen caps extracted team names for display.
const maxTeamNameLen = 30

var (
	teamNameRe = regexp.MustCompile(`team\s*-?\s*name\s*[:\-]*\s*(.+)`)
	mentionRe  = regexp.MustCompile(`<[@#][!&]?\d+>`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// GateVerdict is the outcome of candidate validation.
//
// Ignore means drop the message with no reply at all. A non-empty Deny means
// the candidate was rejected for a reason the sender should see. Otherwise
// the candidate is accepted and carries the extracted team name and the
// deduplicated claimant set, leader first.
type GateVerdict struct {
	Ignore   bool
	Deny     domain.DenyReason
	TeamName string
	Members  []string
}

// Accepted reports whether allocation may proceed.
func (v *GateVerdict) Accepted() bool {
	return !v.Ignore && v.Deny == ""
}

// RegistrationGate validates an inbound candidate message before any
// allocation is attempted. Checks run in a fixed order and short-circuit on
// the first failure. The gate never mutates capacity.
type RegistrationGate struct {
	slots repository.SlotRepository
	bans  repository.BanRepository
	log   *logger.Logger
}

// NewRegistrationGate creates a new registration gate.
func NewRegistrationGate(slots repository.SlotRepository, bans repository.BanRepository, log *logger.Logger) *RegistrationGate {
	if log == nil {
		log = logger.Get()
	}
	return &RegistrationGate{slots: slots, bans: bans, log: log}
}

// CheckScrim validates a candidate against a scrim.
func (g *RegistrationGate) CheckScrim(ctx context.Context, scrim *domain.Scrim, msg *platform.InboundMessage) (*GateVerdict, error) {
	if scrim.OpenedAt == nil || scrim.Closed() || scrim.RoleID == "" {
		return &GateVerdict{Ignore: true}, nil
	}
	if msg.AuthorIsBot || msg.AuthorHasRole(scrim.ModRoleID) {
		return &GateVerdict{Ignore: true}, nil
	}

	if deny := structuralCheck(msg, scrim.RequiredMentions); deny != "" {
		return &GateVerdict{Deny: deny}, nil
	}

	teamName, deny := resolveTeamName(msg, scrim.TeamNameCompulsion)
	if deny != "" {
		return &GateVerdict{Deny: deny}, nil
	}

	if !scrim.MultiRegister {
		registered, err := g.alreadyRegistered(ctx, domain.KindScrim, scrim.ID, msg.AuthorID)
		if err != nil {
			return nil, err
		}
		if registered {
			return &GateVerdict{Deny: domain.DenyMultiRegister}, nil
		}
	}

	banned, err := g.bans.IsBanned(ctx, domain.KindScrim, scrim.ID, msg.AuthorID)
	if err != nil {
		return nil, err
	}
	if banned {
		return &GateVerdict{Deny: domain.DenyBanned}, nil
	}

	return &GateVerdict{TeamName: teamName, Members: claimantSet(msg)}, nil
}

// CheckTourney validates a candidate against a tourney. Duplicate team name
// detection is not done here; the allocator checks it inside its critical
// section against the authoritative slot list.
func (g *RegistrationGate) CheckTourney(ctx context.Context, tourney *domain.Tourney, msg *platform.InboundMessage) (*GateVerdict, error) {
	if tourney.StartedAt == nil || tourney.Closed() || tourney.RoleID == "" {
		return &GateVerdict{Ignore: true}, nil
	}
	if msg.AuthorIsBot || msg.AuthorHasRole(tourney.ModRoleID) {
		return &GateVerdict{Ignore: true}, nil
	}

	if deny := structuralCheck(msg, tourney.RequiredMentions); deny != "" {
		return &GateVerdict{Deny: deny}, nil
	}

	teamName, deny := resolveTeamName(msg, tourney.TeamNameCompulsion)
	if deny != "" {
		return &GateVerdict{Deny: deny}, nil
	}

	if !tourney.MultiRegister {
		registered, err := g.alreadyRegistered(ctx, domain.KindTourney, tourney.ID, msg.AuthorID)
		if err != nil {
			return nil, err
		}
		if registered {
			return &GateVerdict{Deny: domain.DenyMultiRegister}, nil
		}
	}

	banned, err := g.bans.IsBanned(ctx, domain.KindTourney, tourney.ID, msg.AuthorID)
	if err != nil {
		return nil, err
	}
	if banned {
		return &GateVerdict{Deny: domain.DenyBanned}, nil
	}

	return &GateVerdict{TeamName: teamName, Members: claimantSet(msg)}, nil
}

func (g *RegistrationGate) alreadyRegistered(ctx context.Context, kind domain.EventKind, eventID int64, userID string) (bool, error) {
	slots, err := g.slots.ListByEvent(ctx, kind, eventID)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.LeaderID == userID {
			return true, nil
		}
	}
	return false, nil
}

// structuralCheck rejects messages that cannot possibly be registrations
// before any text rules run.
func structuralCheck(msg *platform.InboundMessage, requiredMentions int) domain.DenyReason {
	if strings.TrimSpace(msg.Content) == "" && len(msg.Mentions) == 0 {
		return domain.DenyBadMessage
	}
	humans := 0
	for _, m := range msg.Mentions {
		if !m.Bot {
			humans++
		}
	}
	if humans < requiredMentions {
		return domain.DenyNotEnoughTags
	}
	return ""
}

func resolveTeamName(msg *platform.InboundMessage, compulsion bool) (string, domain.DenyReason) {
	name, found := ExtractTeamName(msg.Content)
	if !found {
		if compulsion {
			return "", domain.DenyNoTeamName
		}
		name = fmt.Sprintf("%s's team", msg.AuthorID)
	}
	return name, ""
}

// Normalize canonicalizes registration text: NFKC then lowercase. All text
// rules, team name extraction and duplicate detection included, run on the
// normalized form so visually identical strings compare equal.
func Normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// ExtractTeamName pulls a team name out of a candidate message. The second
// return is false when no usable name was found.
func ExtractTeamName(content string) (string, bool) {
	match := teamNameRe.FindStringSubmatch(Normalize(content))
	if match == nil {
		return "", false
	}
	name := mentionRe.ReplaceAllString(match[1], "")
	name = spaceRe.ReplaceAllString(name, " ")
	name = strings.Trim(name, " :-_|")
	if name == "" {
		return "", false
	}
	runes := []rune(name)
	if len(runes) > maxTeamNameLen {
		name = string(runes[:maxTeamNameLen])
	}
	return name, true
}

// claimantSet builds the deduplicated claimant list: the sender first, then
// every non-bot mentioned user.
func claimantSet(msg *platform.InboundMessage) []string {
	members := []string{msg.AuthorID}
	seen := map[string]struct{}{msg.AuthorID: {}}
	for _, m := range msg.Mentions {
		if m.Bot {
			continue
		}
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		members = append(members, m.UserID)
	}
	return members
}
