// Package di wires the application dependency graph.
package di

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/plovers390-cloud/ScrimX/internal/domain"
	"github.com/plovers390-cloud/ScrimX/internal/handler"
	"github.com/plovers390-cloud/ScrimX/internal/platform/discord"
	"github.com/plovers390-cloud/ScrimX/internal/repository"
	"github.com/plovers390-cloud/ScrimX/internal/service"
	"github.com/plovers390-cloud/ScrimX/internal/timer"
	"github.com/plovers390-cloud/ScrimX/pkg/config"
	"github.com/plovers390-cloud/ScrimX/pkg/database"
	"github.com/plovers390-cloud/ScrimX/pkg/logger"
	"github.com/plovers390-cloud/ScrimX/pkg/redis"
	"github.com/plovers390-cloud/ScrimX/pkg/telemetry"
	"go.uber.org/zap"
)

// Infrastructure holds external connections.
type Infrastructure struct {
	DB        *database.PostgresDB
	Redis     *redis.Client
	Session   *discordgo.Session
	Telemetry *telemetry.Telemetry
}

// Repositories holds all data access implementations.
type Repositories struct {
	Scrims       repository.ScrimRepository
	Tourneys     repository.TourneyRepository
	Slots        repository.SlotRepository
	Reservations repository.ReservationRepository
	Bans         repository.BanRepository
	Timers       repository.TimerRepository
}

// Services holds the registration engine components.
type Services struct {
	Active     *service.ActiveChannels
	Dispatcher *service.Dispatcher
	Gate       *service.RegistrationGate
	Closer     *service.EventCloser
	Allocator  *service.SlotAllocator
	Scheduler  *service.LifecycleScheduler
	Timers     *timer.Service
}

// Handlers holds the admin HTTP handlers.
type Handlers struct {
	Event  *handler.EventHandler
	Health *handler.HealthHandler
}

// Container holds the whole application graph.
type Container struct {
	Config         *config.Config
	Logger         *logger.Logger
	Infrastructure *Infrastructure
	Repositories   *Repositories
	Services       *Services
	Handlers       *Handlers
	Bridge         *discord.Bridge
}

// NewContainer builds the container from configuration. The Discord session
// is created but not yet connected; the caller opens it after registering
// gateway handlers.
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.Get()
	}

	tel, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	db, err := database.NewPostgresDB(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	rdb, err := redis.NewClient(ctx, &redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	repos := &Repositories{
		Scrims:       repository.NewPostgresScrimRepository(db.Pool),
		Tourneys:     repository.NewPostgresTourneyRepository(db.Pool),
		Slots:        repository.NewPostgresSlotRepository(db.Pool),
		Reservations: repository.NewPostgresReservationRepository(db.Pool),
		Bans:         repository.NewPostgresBanRepository(db.Pool),
		Timers:       repository.NewPostgresTimerRepository(db.Pool),
	}

	chat := discord.NewClient(session, log)
	active := service.NewActiveChannels(rdb, log)
	dispatcher := service.NewDispatcher(log)
	dispatcher.Subscribe(func(ctx context.Context, entry *service.LogEntry) {
		log.Info("registration event",
			zap.String("kind", string(entry.Kind)),
			zap.String("event_kind", string(entry.EventKind)),
			zap.Int64("event_id", entry.EventID),
			zap.String("guild_id", entry.GuildID),
			zap.String("channel_id", entry.ChannelID),
			zap.String("user_id", entry.UserID),
			zap.String("reason", entry.Reason),
			zap.Any("fields", entry.Fields),
		)
	})

	gate := service.NewRegistrationGate(repos.Slots, repos.Bans, log)
	closer := service.NewEventCloser(repos.Scrims, repos.Tourneys, chat, active, dispatcher, log)
	allocator := service.NewSlotAllocator(repos.Scrims, repos.Tourneys, repos.Slots, gate, closer, chat, active, dispatcher, log)

	// The timer service and scheduler reference each other; bind late.
	var scheduler *service.LifecycleScheduler
	timers := timer.NewService(repos.Timers, timer.HandlerFunc(func(ctx context.Context, tm *domain.Timer) error {
		return scheduler.HandleTimer(ctx, tm)
	}), log, &timer.ServiceConfig{
		ScanInterval: cfg.Engine.TimerScanInterval,
		BatchSize:    cfg.Engine.TimerBatchSize,
	})
	scheduler = service.NewLifecycleScheduler(
		repos.Scrims, repos.Tourneys, repos.Slots, repos.Reservations, repos.Bans,
		timers, chat, allocator, active, dispatcher, log, cfg.Engine.PurgeLimit,
	)

	bridge := discord.NewBridge(session, allocator, active, log)
	bridge.Register()

	return &Container{
		Config: cfg,
		Logger: log,
		Infrastructure: &Infrastructure{
			DB:        db,
			Redis:     rdb,
			Session:   session,
			Telemetry: tel,
		},
		Repositories: repos,
		Services: &Services{
			Active:     active,
			Dispatcher: dispatcher,
			Gate:       gate,
			Closer:     closer,
			Allocator:  allocator,
			Scheduler:  scheduler,
			Timers:     timers,
		},
		Handlers: &Handlers{
			Event: handler.NewEventHandler(
				repos.Scrims, repos.Tourneys, repos.Slots, repos.Reservations,
				repos.Bans, scheduler, closer, timers, log,
			),
			Health: handler.NewHealthHandler(db, rdb, timers),
		},
		Bridge: bridge,
	}, nil
}

// WarmActiveIndex loads the currently open registration channels into the
// fast-path index. Called once on boot before the gateway connects.
func (c *Container) WarmActiveIndex(ctx context.Context) error {
	return c.Services.Active.Warm(ctx, c.Repositories.Scrims, c.Repositories.Tourneys)
}

// Close shuts everything down in reverse dependency order.
func (c *Container) Close(ctx context.Context) {
	c.Services.Timers.Stop()

	if c.Infrastructure.Session != nil {
		if err := c.Infrastructure.Session.Close(); err != nil {
			c.Logger.Error("failed to close discord session", zap.Error(err))
		}
	}
	if c.Infrastructure.Redis != nil {
		if err := c.Infrastructure.Redis.Close(); err != nil {
			c.Logger.Error("failed to close redis client", zap.Error(err))
		}
	}
	if c.Infrastructure.DB != nil {
		c.Infrastructure.DB.Close()
	}
	if c.Infrastructure.Telemetry != nil {
		if err := c.Infrastructure.Telemetry.Shutdown(ctx); err != nil {
			c.Logger.Error("failed to shut down telemetry", zap.Error(err))
		}
	}
}
