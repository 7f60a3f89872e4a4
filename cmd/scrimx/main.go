package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plovers390-cloud/ScrimX/internal/di"
	"github.com/plovers390-cloud/ScrimX/pkg/config"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       logLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	container, err := di.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	defer container.Close(shutdownCtx)

	if err := container.WarmActiveIndex(ctx); err != nil {
		return fmt.Errorf("failed to warm active channel index: %w", err)
	}

	session := container.Infrastructure.Session
	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	log.Info("discord gateway connected")

	// Catch up on timers that came due while the process was down, then
	// hand delivery to the background worker.
	container.Services.Timers.ScanOnce(ctx)
	container.Services.Timers.Start(ctx)

	router := buildRouter(cfg, container)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("admin server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("admin server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", zap.Error(err))
	}
	return nil
}

func buildRouter(cfg *config.Config, container *di.Container) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	health := container.Handlers.Health
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)

	api := router.Group("/api/v1")
	api.Use(middleware.JWTMiddleware(&middleware.JWTConfig{
		Secret: cfg.JWT.Secret,
	}))

	api.GET("/timers/stats", health.TimerStats)

	events := container.Handlers.Event
	api.GET("/guilds/:guild_id/scrims", events.ListScrims)
	api.GET("/guilds/:guild_id/tourneys", events.ListTourneys)

	scrims := api.Group("/scrims")
	{
		scrims.GET("/:id", events.GetScrim)
		scrims.GET("/:id/reservations", events.ListReservations)
		scrims.GET("/:id/bans/:user_id", events.ListScrimBans)
		scrims.POST("/:id/open", middleware.RequireRole("admin", "moderator"), events.OpenScrim)
		scrims.POST("/:id/close", middleware.RequireRole("admin", "moderator"), events.CloseScrim)
		scrims.POST("/:id/bans", middleware.RequireRole("admin", "moderator"), events.BanFromScrim)
		scrims.DELETE("/:id/bans/:user_id", middleware.RequireRole("admin", "moderator"), events.UnbanFromScrim)
		scrims.DELETE("/:id/reservations/:reservation_id", middleware.RequireRole("admin", "moderator"), events.DeleteReservation)
	}

	tourneys := api.Group("/tourneys")
	{
		tourneys.GET("/:id", events.GetTourney)
		tourneys.GET("/:id/bans/:user_id", events.ListTourneyBans)
		tourneys.POST("/:id/close", middleware.RequireRole("admin", "moderator"), events.CloseTourney)
		tourneys.POST("/:id/bans", middleware.RequireRole("admin", "moderator"), events.BanFromTourney)
		tourneys.DELETE("/:id/bans/:user_id", middleware.RequireRole("admin", "moderator"), events.UnbanFromTourney)
	}

	return router
}
