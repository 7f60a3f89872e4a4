package domain

import "time"

// BanRecord bars a participant from registering in one event.
// A temporary ban carries an expiry; the ban-expiry timer deletes the
// record and emits an unban log when it fires. ExpiresAt nil means permanent.
type BanRecord struct {
	ID        string     `json:"id"`
	EventKind EventKind  `json:"event_kind"`
	EventID   int64      `json:"event_id"`
	GuildID   string     `json:"guild_id"`
	UserID    string     `json:"user_id"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether a temporary ban has passed its expiry.
func (b *BanRecord) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}
