package domain

import "time"

// AssignedSlot is one numbered registration unit claimed by a participant or team.
// Slots are owned exclusively by their event and deleted en masse on reopen or delete.
type AssignedSlot struct {
	ID        int64     `json:"id"`
	EventKind EventKind `json:"event_kind"`
	EventID   int64     `json:"event_id"`
	Num       int       `json:"num"`
	LeaderID  string    `json:"leader_id"`
	TeamName  string    `json:"team_name"`
	Members   []string  `json:"members"`
	MessageID string    `json:"message_id,omitempty"` // empty for reservation-seeded slots
	JumpURL   string    `json:"jump_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reservation is a slot number pre-assigned to a specific participant
// before the public window opens. It is re-seeded into an AssignedSlot
// on every reopen and its number is excluded from the public pool.
type Reservation struct {
	ID       int64  `json:"id"`
	ScrimID  int64  `json:"scrim_id"`
	Num      int    `json:"num"`
	UserID   string `json:"user_id,omitempty"`
	TeamName string `json:"team_name"`
}
