package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/dto"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/internal/service"
	"github.com/plovers390-cloud/ScrimX/internal/timer"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/response"
	"go.uber.org/zap"
)

// EventHandler exposes the admin surface over registration events: listing,
// manual open and close, ban and unban.
type EventHandler struct {
	scrims       repository.ScrimRepository
	tourneys     repository.TourneyRepository
	slots        repository.SlotRepository
	reservations repository.ReservationRepository
	bans         repository.BanRepository
	scheduler    *service.LifecycleScheduler
	closer       *service.EventCloser
	timers       *timer.Service
	log          *logger.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(
	scrims repository.ScrimRepository,
	tourneys repository.TourneyRepository,
	slots repository.SlotRepository,
	reservations repository.ReservationRepository,
	bans repository.BanRepository,
	scheduler *service.LifecycleScheduler,
	closer *service.EventCloser,
	timers *timer.Service,
	log *logger.Logger,
) *EventHandler {
	if log == nil {
		log = logger.Get()
	}
	return &EventHandler{
		scrims:       scrims,
		tourneys:     tourneys,
		slots:        slots,
		reservations: reservations,
		bans:         bans,
		scheduler:    scheduler,
		closer:       closer,
		timers:       timers,
		log:          log,
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid event id"))
		return 0, false
	}
	return id, true
}

// ListScrims handles GET /guilds/:guild_id/scrims
func (h *EventHandler) ListScrims(c *gin.Context) {
	scrims, err := h.scrims.ListByGuild(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list scrims"))
		return
	}

	out := make([]*dto.ScrimResponse, len(scrims))
	for i, s := range scrims {
		out[i] = dto.ToScrimResponse(s)
	}
	c.JSON(http.StatusOK, response.Success(out))
}

// GetScrim handles GET /scrims/:id
func (h *EventHandler) GetScrim(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	scrim, err := h.scrims.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get scrim"))
		return
	}
	if scrim == nil {
		c.JSON(http.StatusNotFound, response.NotFound("Scrim not found"))
		return
	}

	slots, err := h.slots.ListByEvent(c.Request.Context(), domain.KindScrim, scrim.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list slots"))
		return
	}
	slotResponses := make([]*dto.SlotResponse, len(slots))
	for i, s := range slots {
		slotResponses[i] = dto.ToSlotResponse(s)
	}

	c.JSON(http.StatusOK, response.Success(gin.H{
		"scrim": dto.ToScrimResponse(scrim),
		"slots": slotResponses,
	}))
}

// OpenScrim handles POST /scrims/:id/open - manual open, bypassing the
// timer guards.
func (h *EventHandler) OpenScrim(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	scrim, err := h.scrims.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get scrim"))
		return
	}
	if scrim == nil {
		c.JSON(http.StatusNotFound, response.NotFound("Scrim not found"))
		return
	}
	if scrim.OpenedAt != nil && !scrim.Closed() {
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeEventAlreadyOpen, "Scrim is already open"))
		return
	}

	if err := h.scheduler.OpenScrim(c.Request.Context(), scrim); err != nil {
		h.log.Error("manual scrim open failed", zap.Int64("scrim_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to open scrim"))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"opened": true}))
}

// CloseScrim handles POST /scrims/:id/close
func (h *EventHandler) CloseScrim(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	scrim, err := h.scrims.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get scrim"))
		return
	}
	if scrim == nil {
		c.JSON(http.StatusNotFound, response.NotFound("Scrim not found"))
		return
	}

	if err := h.closer.CloseScrim(c.Request.Context(), id); err != nil {
		h.log.Error("manual scrim close failed", zap.Int64("scrim_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to close scrim"))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"closed": true}))
}

// ListTourneys handles GET /guilds/:guild_id/tourneys
func (h *EventHandler) ListTourneys(c *gin.Context) {
	tourneys, err := h.tourneys.ListByGuild(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list tourneys"))
		return
	}

	out := make([]*dto.TourneyResponse, len(tourneys))
	for i, t := range tourneys {
		count, err := h.slots.CountByEvent(c.Request.Context(), domain.KindTourney, t.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.InternalError("Failed to count slots"))
			return
		}
		out[i] = dto.ToTourneyResponse(t, count)
	}
	c.JSON(http.StatusOK, response.Success(out))
}

// GetTourney handles GET /tourneys/:id
func (h *EventHandler) GetTourney(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tourney, err := h.tourneys.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get tourney"))
		return
	}
	if tourney == nil {
		c.JSON(http.StatusNotFound, response.NotFound("Tourney not found"))
		return
	}

	slots, err := h.slots.ListByEvent(c.Request.Context(), domain.KindTourney, tourney.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list slots"))
		return
	}
	slotResponses := make([]*dto.SlotResponse, len(slots))
	for i, s := range slots {
		slotResponses[i] = dto.ToSlotResponse(s)
	}

	c.JSON(http.StatusOK, response.Success(gin.H{
		"tourney": dto.ToTourneyResponse(tourney, len(slots)),
		"slots":   slotResponses,
	}))
}

// CloseTourney handles POST /tourneys/:id/close
func (h *EventHandler) CloseTourney(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tourney, err := h.tourneys.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get tourney"))
		return
	}
	if tourney == nil {
		c.JSON(http.StatusNotFound, response.NotFound("Tourney not found"))
		return
	}

	if err := h.closer.CloseTourney(c.Request.Context(), id); err != nil {
		h.log.Error("manual tourney close failed", zap.Int64("tourney_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to close tourney"))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"closed": true}))
}

// BanFromScrim handles POST /scrims/:id/bans
func (h *EventHandler) BanFromScrim(c *gin.Context) {
	h.ban(c, domain.KindScrim)
}

// BanFromTourney handles POST /tourneys/:id/bans
func (h *EventHandler) BanFromTourney(c *gin.Context) {
	h.ban(c, domain.KindTourney)
}

// ban creates a ban record and, for temporary bans, arms the one-shot
// expiry timer that will delete it.
func (h *EventHandler) ban(c *gin.Context, kind domain.EventKind) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeValidationFailed, msg))
		return
	}

	guildID, err := h.eventGuild(c, kind, id)
	if err != nil {
		return
	}

	ban := &domain.BanRecord{
		ID:        uuid.New().String(),
		EventKind: kind,
		EventID:   id,
		GuildID:   guildID,
		UserID:    req.UserID,
		Reason:    req.Reason,
		CreatedAt: time.Now(),
	}
	if req.ExpiresInHours > 0 {
		expiresAt := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		ban.ExpiresAt = &expiresAt
	}

	if err := h.bans.Create(c.Request.Context(), ban); err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to create ban"))
		return
	}

	if ban.ExpiresAt != nil {
		_, err := h.timers.CreateTimer(c.Request.Context(), *ban.ExpiresAt, domain.TimerBanExpiry, map[string]any{
			"event_kind": string(kind),
			"event_ids":  []int64{id},
			"user_id":    req.UserID,
			"guild_id":   guildID,
			"reason":     req.Reason,
		})
		if err != nil {
			h.log.Error("failed to arm ban expiry timer",
				zap.String("ban_id", ban.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, response.InternalError("Failed to schedule ban expiry"))
			return
		}
	}

	c.JSON(http.StatusCreated, response.Success(dto.ToBanResponse(ban)))
}

// ListScrimBans handles GET /scrims/:id/bans/:user_id
func (h *EventHandler) ListScrimBans(c *gin.Context) {
	h.listBans(c, domain.KindScrim)
}

// ListTourneyBans handles GET /tourneys/:id/bans/:user_id
func (h *EventHandler) ListTourneyBans(c *gin.Context) {
	h.listBans(c, domain.KindTourney)
}

func (h *EventHandler) listBans(c *gin.Context, kind domain.EventKind) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("user_id is required"))
		return
	}

	bans, err := h.bans.ListByUser(c.Request.Context(), kind, []int64{id}, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list bans"))
		return
	}

	out := make([]*dto.BanResponse, len(bans))
	for i, ban := range bans {
		out[i] = dto.ToBanResponse(ban)
	}
	c.JSON(http.StatusOK, response.Success(out))
}

// ListReservations handles GET /scrims/:id/reservations
func (h *EventHandler) ListReservations(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	reservations, err := h.reservations.ListByScrim(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list reservations"))
		return
	}

	out := make([]*dto.ReservationResponse, len(reservations))
	for i, r := range reservations {
		out[i] = dto.ToReservationResponse(r)
	}
	c.JSON(http.StatusOK, response.Success(out))
}

// DeleteReservation handles DELETE /scrims/:id/reservations/:reservation_id
// The freed number returns to the pool at the next open, not immediately.
func (h *EventHandler) DeleteReservation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reservationID, err := strconv.ParseInt(c.Param("reservation_id"), 10, 64)
	if err != nil || reservationID <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid reservation id"))
		return
	}

	reservations, err := h.reservations.ListByScrim(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to list reservations"))
		return
	}
	found := false
	for _, r := range reservations {
		if r.ID == reservationID {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, response.NotFound("Reservation not found"))
		return
	}

	if err := h.reservations.Delete(c.Request.Context(), reservationID); err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to delete reservation"))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"deleted": true}))
}

// UnbanFromScrim handles DELETE /scrims/:id/bans/:user_id
func (h *EventHandler) UnbanFromScrim(c *gin.Context) {
	h.unban(c, domain.KindScrim)
}

// UnbanFromTourney handles DELETE /tourneys/:id/bans/:user_id
func (h *EventHandler) UnbanFromTourney(c *gin.Context) {
	h.unban(c, domain.KindTourney)
}

func (h *EventHandler) unban(c *gin.Context, kind domain.EventKind) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("user_id is required"))
		return
	}

	deleted, err := h.bans.DeleteByUser(c.Request.Context(), kind, []int64{id}, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to remove ban"))
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, response.NotFound("Ban not found"))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"removed": deleted}))
}

// eventGuild resolves the guild of an event, writing the error response
// itself on failure.
func (h *EventHandler) eventGuild(c *gin.Context, kind domain.EventKind, id int64) (string, error) {
	if kind == domain.KindScrim {
		scrim, err := h.scrims.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get scrim"))
			return "", err
		}
		if scrim == nil {
			c.JSON(http.StatusNotFound, response.NotFound("Scrim not found"))
			return "", errNotFound
		}
		return scrim.GuildID, nil
	}

	tourney, err := h.tourneys.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to get tourney"))
		return "", err
	}
	if tourney == nil {
		c.JSON(http.StatusNotFound, response.NotFound("Tourney not found"))
		return "", errNotFound
	}
	return tourney.GuildID, nil
}
