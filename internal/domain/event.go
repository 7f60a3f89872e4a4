package domain

import (
	"time"
)

// EventKind identifies which registration event variant a record belongs to.
type EventKind string

const (
	KindScrim   EventKind = "scrim"
	KindTourney EventKind = "tourney"
)

// AutocleanType identifies a janitorial side effect to run on the autoclean cycle.
type AutocleanType string

const (
	AutocleanChannel AutocleanType = "channel" // purge non-pinned messages
	AutocleanRole    AutocleanType = "role"    // strip the eligibility role
)

// Scrim is a recurring, capacity-pool registration event.
// The available slot pool shrinks on every claim and is refilled at reopen.
type Scrim struct {
	ID                    int64           `json:"id"`
	GuildID               string          `json:"guild_id"`
	Name                  string          `json:"name"`
	RegistrationChannelID string          `json:"registration_channel_id"`
	RoleID                string          `json:"role_id"`      // eligibility role granted on a successful claim
	ModRoleID             string          `json:"mod_role_id"`  // holders are ignored entirely
	OpenRoleID            string          `json:"open_role_id"` // role the channel is toggled for; empty means @everyone
	PingRoleID            string          `json:"ping_role_id"`
	RequiredMentions      int             `json:"required_mentions"`
	TotalSlots            int             `json:"total_slots"`
	AvailableSlots        []int           `json:"available_slots"`
	OpenTime              time.Time       `json:"open_time"` // next scheduled open
	OpenDays              []time.Weekday  `json:"open_days"`
	Toggle                bool            `json:"toggle"` // recurring open enabled
	AutocleanTime         time.Time       `json:"autoclean_time"`
	Autoclean             []AutocleanType `json:"autoclean"`
	OpenedAt              *time.Time      `json:"opened_at,omitempty"`
	ClosedAt              *time.Time      `json:"closed_at,omitempty"`
	SlotlistMessageID     *string         `json:"slotlist_message_id,omitempty"`
	AutodeleteRejected    bool            `json:"autodelete_rejected"`
	MultiRegister         bool            `json:"multi_register"`
	TeamNameCompulsion    bool            `json:"teamname_compulsion"`
	CreatedAt             time.Time       `json:"created_at"`
}

// Closed reports whether the registration window is closed.
// An event is closed if and only if closed_at is set.
func (s *Scrim) Closed() bool {
	return s.ClosedAt != nil
}

// OpensOn reports whether the recurring open schedule includes the given weekday.
func (s *Scrim) OpensOn(day time.Weekday) bool {
	for _, d := range s.OpenDays {
		if d == day {
			return true
		}
	}
	return false
}

// AutocleanEnabled reports whether the given autoclean side effect is configured.
func (s *Scrim) AutocleanEnabled(t AutocleanType) bool {
	for _, a := range s.Autoclean {
		if a == t {
			return true
		}
	}
	return false
}

// Tourney is a monotonic-counter registration event with a fixed slot cap.
type Tourney struct {
	ID                    int64      `json:"id"`
	GuildID               string     `json:"guild_id"`
	Name                  string     `json:"name"`
	RegistrationChannelID string     `json:"registration_channel_id"`
	ConfirmChannelID      string     `json:"confirm_channel_id"`
	RoleID                string     `json:"role_id"`
	ModRoleID             string     `json:"mod_role_id"`
	OpenRoleID            string     `json:"open_role_id"`
	PingRoleID            string     `json:"ping_role_id"`
	RequiredMentions      int        `json:"required_mentions"`
	TotalSlots            int        `json:"total_slots"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
	NoDuplicateName       bool       `json:"no_duplicate_name"`
	AutodeleteRejected    bool       `json:"autodelete_rejected"`
	MultiRegister         bool       `json:"multi_register"`
	TeamNameCompulsion    bool       `json:"teamname_compulsion"`
	SuccessMessage        string     `json:"success_message,omitempty"`
	CheckEmoji            string     `json:"check_emoji"`
	CrossEmoji            string     `json:"cross_emoji"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Default acknowledgement emojis used when a tourney has none configured.
const (
	DefaultCheckEmoji = "✅" // white heavy check mark
	DefaultCrossEmoji = "❌" // cross mark
)

// Closed reports whether the registration window is closed.
func (t *Tourney) Closed() bool {
	return t.ClosedAt != nil
}

// Check returns the configured check emoji, falling back to the default.
func (t *Tourney) Check() string {
	if t.CheckEmoji == "" {
		return DefaultCheckEmoji
	}
	return t.CheckEmoji
}

// Cross returns the configured cross emoji, falling back to the default.
func (t *Tourney) Cross() string {
	if t.CrossEmoji == "" {
		return DefaultCrossEmoji
	}
	return t.CrossEmoji
}
