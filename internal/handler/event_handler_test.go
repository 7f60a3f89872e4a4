package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/dto"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/internal/service"
	"github.com/plovers390-cloud/ScrimX/internal/timer"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	scrims       *repository.MemoryScrimRepository
	tourneys     *repository.MemoryTourneyRepository
	slots        *repository.MemorySlotRepository
	reservations *repository.MemoryReservationRepository
	bans         *repository.MemoryBanRepository
	timerRepo    *repository.MemoryTimerRepository
	router       *gin.Engine
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Get()

	f := &handlerFixture{
		scrims:       repository.NewMemoryScrimRepository(),
		tourneys:     repository.NewMemoryTourneyRepository(),
		slots:        repository.NewMemorySlotRepository(),
		reservations: repository.NewMemoryReservationRepository(),
		bans:         repository.NewMemoryBanRepository(),
		timerRepo:    repository.NewMemoryTimerRepository(),
	}

	chat := service.NewMockChatClient()
	active := service.NewActiveChannels(nil, log)
	dispatcher := service.NewDispatcher(log)
	gate := service.NewRegistrationGate(f.slots, f.bans, log)
	closer := service.NewEventCloser(f.scrims, f.tourneys, chat, active, dispatcher, log)
	allocator := service.NewSlotAllocator(f.scrims, f.tourneys, f.slots, gate, closer, chat, active, dispatcher, log)

	var sched *service.LifecycleScheduler
	timers := timer.NewService(f.timerRepo, timer.HandlerFunc(func(ctx context.Context, tm *domain.Timer) error {
		return sched.HandleTimer(ctx, tm)
	}), log, nil)
	sched = service.NewLifecycleScheduler(
		f.scrims, f.tourneys, f.slots, f.reservations, f.bans,
		timers, chat, allocator, active, dispatcher, log, 50,
	)

	h := NewEventHandler(f.scrims, f.tourneys, f.slots, f.reservations, f.bans, sched, closer, timers, log)

	router := gin.New()
	router.GET("/scrims/:id/reservations", h.ListReservations)
	router.GET("/scrims/:id/bans/:user_id", h.ListScrimBans)
	router.POST("/scrims/:id/bans", h.BanFromScrim)
	router.DELETE("/scrims/:id/bans/:user_id", h.UnbanFromScrim)
	router.DELETE("/scrims/:id/reservations/:reservation_id", h.DeleteReservation)
	f.router = router
	return f
}

func (f *handlerFixture) seedScrim(t *testing.T) *domain.Scrim {
	t.Helper()
	scrim := &domain.Scrim{
		GuildID:               "guild-1",
		Name:                  "Daily Scrims",
		RegistrationChannelID: "chan-scrim",
		RoleID:                "role-elig",
		TotalSlots:            10,
	}
	require.NoError(t, f.scrims.Create(context.Background(), scrim))
	return scrim
}

func (f *handlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestBanWithExpiryArmsTimer(t *testing.T) {
	f := newHandlerFixture(t)
	scrim := f.seedScrim(t)

	w := f.do(http.MethodPost, fmt.Sprintf("/scrims/%d/bans", scrim.ID), dto.BanRequest{
		UserID:         "u1",
		Reason:         "toxic",
		ExpiresInHours: 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	banned, err := f.bans.IsBanned(context.Background(), domain.KindScrim, scrim.ID, "u1")
	require.NoError(t, err)
	assert.True(t, banned)
	assert.Equal(t, 1, f.timerRepo.Pending(), "expiry timer armed")

	due, err := f.timerRepo.ListExpired(context.Background(), time.Now().Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.TimerBanExpiry, due[0].Kind)
	assert.Equal(t, "u1", due[0].String("user_id"))
}

func TestListBansReturnsOnlyMatchingUser(t *testing.T) {
	f := newHandlerFixture(t)
	scrim := f.seedScrim(t)
	ctx := context.Background()

	require.NoError(t, f.bans.Create(ctx, &domain.BanRecord{
		ID: "ban-1", EventKind: domain.KindScrim, EventID: scrim.ID,
		GuildID: "guild-1", UserID: "u1", Reason: "toxic",
	}))
	require.NoError(t, f.bans.Create(ctx, &domain.BanRecord{
		ID: "ban-2", EventKind: domain.KindScrim, EventID: scrim.ID,
		GuildID: "guild-1", UserID: "u2", Reason: "spam",
	}))

	w := f.do(http.MethodGet, fmt.Sprintf("/scrims/%d/bans/u1", scrim.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    []dto.BanResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "u1", body.Data[0].UserID)
	assert.Equal(t, "toxic", body.Data[0].Reason)
}

func TestUnbanRemovesBan(t *testing.T) {
	f := newHandlerFixture(t)
	scrim := f.seedScrim(t)
	ctx := context.Background()

	require.NoError(t, f.bans.Create(ctx, &domain.BanRecord{
		ID: "ban-1", EventKind: domain.KindScrim, EventID: scrim.ID,
		GuildID: "guild-1", UserID: "u1",
	}))

	w := f.do(http.MethodDelete, fmt.Sprintf("/scrims/%d/bans/u1", scrim.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	banned, err := f.bans.IsBanned(ctx, domain.KindScrim, scrim.ID, "u1")
	require.NoError(t, err)
	assert.False(t, banned)

	w = f.do(http.MethodDelete, fmt.Sprintf("/scrims/%d/bans/u1", scrim.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing left to remove")
}

func TestDeleteReservation(t *testing.T) {
	f := newHandlerFixture(t)
	scrim := f.seedScrim(t)
	ctx := context.Background()

	reservation := &domain.Reservation{ScrimID: scrim.ID, Num: 3, UserID: "vip-1", TeamName: "reserved kings"}
	require.NoError(t, f.reservations.Create(ctx, reservation))

	w := f.do(http.MethodGet, fmt.Sprintf("/scrims/%d/reservations", scrim.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []dto.ReservationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 3, body.Data[0].Num)

	w = f.do(http.MethodDelete, fmt.Sprintf("/scrims/%d/reservations/%d", scrim.ID, reservation.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	remaining, err := f.reservations.ListByScrim(ctx, scrim.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	w = f.do(http.MethodDelete, fmt.Sprintf("/scrims/%d/reservations/%d", scrim.ID, reservation.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
