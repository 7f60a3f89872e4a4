package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plovers390-cloud/ScrimX/internal/timer"
	"github.com/plovers390-cloud/ScrimX/pkg/database"
	"github.com/plovers390-cloud/ScrimX/pkg/redis"
	"github.com/plovers390-cloud/ScrimX/pkg/response"
)

// errNotFound marks a lookup miss already reported to the client.
var errNotFound = errors.New("not found")

// HealthHandler serves liveness, readiness and timer worker stats.
type HealthHandler struct {
	db      *database.PostgresDB
	rdb     *redis.Client
	timers  *timer.Service
	started time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *database.PostgresDB, rdb *redis.Client, timers *timer.Service) *HealthHandler {
	return &HealthHandler{
		db:      db,
		rdb:     rdb,
		timers:  timers,
		started: time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}))
}

// Ready handles GET /health/ready - checks the dependencies the engine
// cannot run without.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := h.db.Ping(c.Request.Context()); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if h.rdb != nil {
		if err := h.rdb.Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Error(response.ErrCodeServiceUnavailable, "Dependency check failed"))
		return
	}
	c.JSON(http.StatusOK, response.Success(checks))
}

// TimerStats handles GET /timers/stats
func (h *HealthHandler) TimerStats(c *gin.Context) {
	stats := h.timers.GetStats()
	c.JSON(http.StatusOK, response.Success(gin.H{
		"running":          stats.IsRunning,
		"total_delivered":  stats.TotalDelivered,
		"total_failed":     stats.TotalFailed,
		"last_scan_time":   stats.LastScanTime,
		"last_batch_count": stats.LastBatchCount,
	}))
}
