package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// In-memory implementations of the store interfaces for testing. They copy
// on read and write so callers never share mutable state with the store,
// matching how a real row round-trip behaves.

// MemoryScrimRepository is an in-memory ScrimRepository.
type MemoryScrimRepository struct {
	mu     sync.RWMutex
	nextID int64
	scrims map[int64]*domain.Scrim
}

// NewMemoryScrimRepository creates a new in-memory scrim store.
func NewMemoryScrimRepository() *MemoryScrimRepository {
	return &MemoryScrimRepository{scrims: make(map[int64]*domain.Scrim)}
}

func (r *MemoryScrimRepository) Create(ctx context.Context, scrim *domain.Scrim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	scrim.ID = r.nextID
	r.scrims[scrim.ID] = copyScrim(scrim)
	return nil
}

func (r *MemoryScrimRepository) GetByID(ctx context.Context, id int64) (*domain.Scrim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scrim, ok := r.scrims[id]
	if !ok {
		return nil, nil
	}
	return copyScrim(scrim), nil
}

func (r *MemoryScrimRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Scrim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, scrim := range r.scrims {
		if scrim.RegistrationChannelID == channelID {
			return copyScrim(scrim), nil
		}
	}
	return nil, nil
}

func (r *MemoryScrimRepository) ListByGuild(ctx context.Context, guildID string) ([]*domain.Scrim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Scrim, 0)
	for _, scrim := range r.scrims {
		if scrim.GuildID == guildID {
			out = append(out, copyScrim(scrim))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryScrimRepository) ListOpenChannelIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0)
	for _, scrim := range r.scrims {
		if scrim.OpenedAt != nil && scrim.ClosedAt == nil {
			ids = append(ids, scrim.RegistrationChannelID)
		}
	}
	return ids, nil
}

func (r *MemoryScrimRepository) Update(ctx context.Context, scrim *domain.Scrim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scrims[scrim.ID]; !ok {
		return ErrNotFound
	}
	r.scrims[scrim.ID] = copyScrim(scrim)
	return nil
}

func (r *MemoryScrimRepository) SetOpenTime(ctx context.Context, id int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scrim, ok := r.scrims[id]; ok {
		scrim.OpenTime = t
	}
	return nil
}

func (r *MemoryScrimRepository) SetAutocleanTime(ctx context.Context, id int64, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scrim, ok := r.scrims[id]; ok {
		scrim.AutocleanTime = t
	}
	return nil
}

func (r *MemoryScrimRepository) SetAvailableSlots(ctx context.Context, id int64, nums []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scrim, ok := r.scrims[id]; ok {
		scrim.AvailableSlots = append([]int(nil), nums...)
	}
	return nil
}

func (r *MemoryScrimRepository) RemoveAvailableSlot(ctx context.Context, id int64, num int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scrim, ok := r.scrims[id]
	if !ok {
		return nil
	}
	kept := scrim.AvailableSlots[:0]
	for _, n := range scrim.AvailableSlots {
		if n != num {
			kept = append(kept, n)
		}
	}
	scrim.AvailableSlots = kept
	return nil
}

func (r *MemoryScrimRepository) MarkOpened(ctx context.Context, id int64, openedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scrim, ok := r.scrims[id]; ok {
		t := openedAt
		scrim.OpenedAt = &t
		scrim.ClosedAt = nil
		scrim.SlotlistMessageID = nil
	}
	return nil
}

func (r *MemoryScrimRepository) MarkClosed(ctx context.Context, id int64, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scrim, ok := r.scrims[id]; ok {
		t := closedAt
		scrim.ClosedAt = &t
		scrim.OpenedAt = nil
	}
	return nil
}

func (r *MemoryScrimRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scrims, id)
	return nil
}

func copyScrim(s *domain.Scrim) *domain.Scrim {
	copied := *s
	copied.AvailableSlots = append([]int(nil), s.AvailableSlots...)
	copied.OpenDays = append([]time.Weekday(nil), s.OpenDays...)
	copied.Autoclean = append([]domain.AutocleanType(nil), s.Autoclean...)
	if s.OpenedAt != nil {
		t := *s.OpenedAt
		copied.OpenedAt = &t
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		copied.ClosedAt = &t
	}
	if s.SlotlistMessageID != nil {
		m := *s.SlotlistMessageID
		copied.SlotlistMessageID = &m
	}
	return &copied
}

// MemoryTourneyRepository is an in-memory TourneyRepository.
type MemoryTourneyRepository struct {
	mu       sync.RWMutex
	nextID   int64
	tourneys map[int64]*domain.Tourney
}

// NewMemoryTourneyRepository creates a new in-memory tourney store.
func NewMemoryTourneyRepository() *MemoryTourneyRepository {
	return &MemoryTourneyRepository{tourneys: make(map[int64]*domain.Tourney)}
}

func (r *MemoryTourneyRepository) Create(ctx context.Context, tourney *domain.Tourney) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	tourney.ID = r.nextID
	r.tourneys[tourney.ID] = copyTourney(tourney)
	return nil
}

func (r *MemoryTourneyRepository) GetByID(ctx context.Context, id int64) (*domain.Tourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tourney, ok := r.tourneys[id]
	if !ok {
		return nil, nil
	}
	return copyTourney(tourney), nil
}

func (r *MemoryTourneyRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Tourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tourney := range r.tourneys {
		if tourney.RegistrationChannelID == channelID {
			return copyTourney(tourney), nil
		}
	}
	return nil, nil
}

func (r *MemoryTourneyRepository) ListByGuild(ctx context.Context, guildID string) ([]*domain.Tourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Tourney, 0)
	for _, tourney := range r.tourneys {
		if tourney.GuildID == guildID {
			out = append(out, copyTourney(tourney))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryTourneyRepository) ListOpenChannelIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0)
	for _, tourney := range r.tourneys {
		if tourney.StartedAt != nil && tourney.ClosedAt == nil {
			ids = append(ids, tourney.RegistrationChannelID)
		}
	}
	return ids, nil
}

func (r *MemoryTourneyRepository) Update(ctx context.Context, tourney *domain.Tourney) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tourneys[tourney.ID]; !ok {
		return ErrNotFound
	}
	r.tourneys[tourney.ID] = copyTourney(tourney)
	return nil
}

func (r *MemoryTourneyRepository) MarkClosed(ctx context.Context, id int64, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tourney, ok := r.tourneys[id]; ok {
		t := closedAt
		tourney.ClosedAt = &t
		tourney.StartedAt = nil
	}
	return nil
}

func (r *MemoryTourneyRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tourneys, id)
	return nil
}

func copyTourney(t *domain.Tourney) *domain.Tourney {
	copied := *t
	if t.StartedAt != nil {
		ts := *t.StartedAt
		copied.StartedAt = &ts
	}
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		copied.ClosedAt = &ts
	}
	return &copied
}

// MemorySlotRepository is an in-memory SlotRepository.
type MemorySlotRepository struct {
	mu     sync.RWMutex
	nextID int64
	slots  map[int64]*domain.AssignedSlot
}

// NewMemorySlotRepository creates a new in-memory slot store.
func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{slots: make(map[int64]*domain.AssignedSlot)}
}

func (r *MemorySlotRepository) Create(ctx context.Context, slot *domain.AssignedSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	slot.ID = r.nextID
	r.slots[slot.ID] = copySlot(slot)
	return nil
}

func (r *MemorySlotRepository) ListByEvent(ctx context.Context, kind domain.EventKind, eventID int64) ([]*domain.AssignedSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.AssignedSlot, 0)
	for _, slot := range r.slots {
		if slot.EventKind == kind && slot.EventID == eventID {
			out = append(out, copySlot(slot))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out, nil
}

func (r *MemorySlotRepository) CountByEvent(ctx context.Context, kind domain.EventKind, eventID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, slot := range r.slots {
		if slot.EventKind == kind && slot.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (r *MemorySlotRepository) HighestNum(ctx context.Context, kind domain.EventKind, eventID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	highest := 0
	for _, slot := range r.slots {
		if slot.EventKind == kind && slot.EventID == eventID && slot.Num > highest {
			highest = slot.Num
		}
	}
	return highest, nil
}

func (r *MemorySlotRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.AssignedSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, slot := range r.slots {
		if slot.MessageID == messageID && messageID != "" {
			return copySlot(slot), nil
		}
	}
	return nil, nil
}

func (r *MemorySlotRepository) DeleteByEvent(ctx context.Context, kind domain.EventKind, eventID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, slot := range r.slots {
		if slot.EventKind == kind && slot.EventID == eventID {
			delete(r.slots, id)
		}
	}
	return nil
}

func copySlot(s *domain.AssignedSlot) *domain.AssignedSlot {
	copied := *s
	copied.Members = append([]string(nil), s.Members...)
	return &copied
}

// MemoryReservationRepository is an in-memory ReservationRepository.
type MemoryReservationRepository struct {
	mu           sync.RWMutex
	nextID       int64
	reservations map[int64]*domain.Reservation
}

// NewMemoryReservationRepository creates a new in-memory reservation store.
func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{reservations: make(map[int64]*domain.Reservation)}
}

func (r *MemoryReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	reservation.ID = r.nextID
	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

func (r *MemoryReservationRepository) ListByScrim(ctx context.Context, scrimID int64) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Reservation, 0)
	for _, reservation := range r.reservations {
		if reservation.ScrimID == scrimID {
			copied := *reservation
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out, nil
}

func (r *MemoryReservationRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reservations, id)
	return nil
}

// MemoryBanRepository is an in-memory BanRepository.
type MemoryBanRepository struct {
	mu   sync.RWMutex
	bans map[string]*domain.BanRecord
}

// NewMemoryBanRepository creates a new in-memory ban store.
func NewMemoryBanRepository() *MemoryBanRepository {
	return &MemoryBanRepository{bans: make(map[string]*domain.BanRecord)}
}

func (r *MemoryBanRepository) Create(ctx context.Context, ban *domain.BanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ban
	r.bans[ban.ID] = &copied
	return nil
}

func (r *MemoryBanRepository) IsBanned(ctx context.Context, kind domain.EventKind, eventID int64, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ban := range r.bans {
		if ban.EventKind == kind && ban.EventID == eventID && ban.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryBanRepository) ListByUser(ctx context.Context, kind domain.EventKind, eventIDs []int64, userID string) ([]*domain.BanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.BanRecord, 0)
	for _, ban := range r.bans {
		if ban.EventKind == kind && ban.UserID == userID && containsID(eventIDs, ban.EventID) {
			copied := *ban
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *MemoryBanRepository) DeleteByUser(ctx context.Context, kind domain.EventKind, eventIDs []int64, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, ban := range r.bans {
		if ban.EventKind == kind && ban.UserID == userID && containsID(eventIDs, ban.EventID) {
			delete(r.bans, id)
			deleted++
		}
	}
	return deleted, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// MemoryTimerRepository is an in-memory TimerRepository.
type MemoryTimerRepository struct {
	mu     sync.RWMutex
	timers map[string]*domain.Timer
}

// NewMemoryTimerRepository creates a new in-memory timer store.
func NewMemoryTimerRepository() *MemoryTimerRepository {
	return &MemoryTimerRepository{timers: make(map[string]*domain.Timer)}
}

func (r *MemoryTimerRepository) Create(ctx context.Context, timer *domain.Timer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *timer
	r.timers[timer.ID] = &copied
	return nil
}

func (r *MemoryTimerRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Timer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Timer, 0)
	for _, timer := range r.timers {
		if !timer.ExpiresAt.After(before) {
			copied := *timer
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryTimerRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, id)
	return nil
}

// Pending returns how many timers are waiting, for tests.
func (r *MemoryTimerRepository) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers)
}
