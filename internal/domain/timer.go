package domain

import "time"

// TimerKind tags a durable timer with the lifecycle transition it drives.
type TimerKind string

const (
	TimerScrimOpen TimerKind = "scrim_open"
	TimerAutoclean TimerKind = "autoclean"
	TimerBanExpiry TimerKind = "ban_expiry"
)

// Timer is a durable scheduled callback. Delivery is at-least-once with no
// ordering guarantee across kinds; handlers must tolerate duplicates and
// must re-create the next occurrence of recurring schedules themselves.
type Timer struct {
	ID        string         `json:"id"`
	Kind      TimerKind      `json:"kind"`
	ExpiresAt time.Time      `json:"expires_at"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Int64 reads an integer payload field, tolerating the float64 shape
// JSONB round-trips produce.
func (t *Timer) Int64(key string) (int64, bool) {
	switch v := t.Payload[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// String reads a string payload field.
func (t *Timer) String(key string) string {
	s, _ := t.Payload[key].(string)
	return s
}

// Int64Slice reads a list payload field of integers.
func (t *Timer) Int64Slice(key string) []int64 {
	raw, ok := t.Payload[key].([]any)
	if !ok {
		if typed, ok := t.Payload[key].([]int64); ok {
			return typed
		}
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case int64:
			out = append(out, v)
		case int:
			out = append(out, int64(v))
		case float64:
			out = append(out, int64(v))
		}
	}
	return out
}
