package dto

import (
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// ScrimResponse is the admin API shape of a scrim.
type ScrimResponse struct {
	ID                    int64      `json:"id"`
	GuildID               string     `json:"guild_id"`
	Name                  string     `json:"name"`
	RegistrationChannelID string     `json:"registration_channel_id"`
	RoleID                string     `json:"role_id"`
	TotalSlots            int        `json:"total_slots"`
	AvailableSlots        []int      `json:"available_slots"`
	OpenTime              time.Time  `json:"open_time"`
	Toggle                bool       `json:"toggle"`
	OpenedAt              *time.Time `json:"opened_at,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
	Open                  bool       `json:"open"`
}

// TourneyResponse is the admin API shape of a tourney.
type TourneyResponse struct {
	ID                    int64      `json:"id"`
	GuildID               string     `json:"guild_id"`
	Name                  string     `json:"name"`
	RegistrationChannelID string     `json:"registration_channel_id"`
	RoleID                string     `json:"role_id"`
	TotalSlots            int        `json:"total_slots"`
	RegisteredSlots       int        `json:"registered_slots"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
	Open                  bool       `json:"open"`
}

// SlotResponse is the admin API shape of an assigned slot.
type SlotResponse struct {
	Num       int       `json:"num"`
	LeaderID  string    `json:"leader_id"`
	TeamName  string    `json:"team_name"`
	Members   []string  `json:"members"`
	JumpURL   string    `json:"jump_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BanRequest asks for a participant ban on one event.
type BanRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	Reason         string `json:"reason"`
	ExpiresInHours int    `json:"expires_in_hours"` // 0 means permanent
}

// Validate validates the ban request.
func (r *BanRequest) Validate() (bool, string) {
	if r.UserID == "" {
		return false, "user_id is required"
	}
	if r.ExpiresInHours < 0 {
		return false, "expires_in_hours must not be negative"
	}
	return true, ""
}

// BanResponse reports a ban record.
type BanResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ReservationResponse is the admin API shape of a pre-assigned slot number.
type ReservationResponse struct {
	ID       int64  `json:"id"`
	Num      int    `json:"num"`
	UserID   string `json:"user_id,omitempty"`
	TeamName string `json:"team_name"`
}

// ToScrimResponse converts a domain scrim.
func ToScrimResponse(s *domain.Scrim) *ScrimResponse {
	return &ScrimResponse{
		ID:                    s.ID,
		GuildID:               s.GuildID,
		Name:                  s.Name,
		RegistrationChannelID: s.RegistrationChannelID,
		RoleID:                s.RoleID,
		TotalSlots:            s.TotalSlots,
		AvailableSlots:        s.AvailableSlots,
		OpenTime:              s.OpenTime,
		Toggle:                s.Toggle,
		OpenedAt:              s.OpenedAt,
		ClosedAt:              s.ClosedAt,
		Open:                  s.OpenedAt != nil && !s.Closed(),
	}
}

// ToTourneyResponse converts a domain tourney.
func ToTourneyResponse(t *domain.Tourney, registered int) *TourneyResponse {
	return &TourneyResponse{
		ID:                    t.ID,
		GuildID:               t.GuildID,
		Name:                  t.Name,
		RegistrationChannelID: t.RegistrationChannelID,
		RoleID:                t.RoleID,
		TotalSlots:            t.TotalSlots,
		RegisteredSlots:       registered,
		StartedAt:             t.StartedAt,
		ClosedAt:              t.ClosedAt,
		Open:                  t.StartedAt != nil && !t.Closed(),
	}
}

// ToBanResponse converts a domain ban record.
func ToBanResponse(b *domain.BanRecord) *BanResponse {
	return &BanResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Reason:    b.Reason,
		ExpiresAt: b.ExpiresAt,
	}
}

// ToReservationResponse converts a domain reservation.
func ToReservationResponse(r *domain.Reservation) *ReservationResponse {
	return &ReservationResponse{
		ID:       r.ID,
		Num:      r.Num,
		UserID:   r.UserID,
		TeamName: r.TeamName,
	}
}

// ToSlotResponse converts a domain slot.
func ToSlotResponse(s *domain.AssignedSlot) *SlotResponse {
	return &SlotResponse{
		Num:       s.Num,
		LeaderID:  s.LeaderID,
		TeamName:  s.TeamName,
		Members:   s.Members,
		JumpURL:   s.JumpURL,
		CreatedAt: s.CreatedAt,
	}
}
