package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-api/internal/api/http"
	"github.com/spec-kit/helpdesk-api/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-api/internal/auth"
	"github.com/spec-kit/helpdesk-api/internal/config"
	"github.com/spec-kit/helpdesk-api/internal/events"
	"github.com/spec-kit/helpdesk-api/internal/observability"
	"github.com/spec-kit/helpdesk-api/internal/persistence"
	"github.com/spec-kit/helpdesk-api/internal/repository"
	"github.com/spec-kit/helpdesk-api/internal/repository/memory"
	"github.com/spec-kit/helpdesk-api/internal/service"
)

// container holds the process-wide collaborators.
type container struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	pg      *persistence.Postgres
	redis   *persistence.Redis

	repos      repository.Repositories
	transactor repository.Transactor

	auth          *service.AuthService
	tickets       *service.TicketService
	notifications *service.NotificationService
}

// bootstrapStorage loads configuration, logging and database connections.
func bootstrapStorage(ctx context.Context) (*container, error) {
	ctx = contextOrBackground(ctx)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return nil, err
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		_ = logger.Sync()
		return nil, err
	}

	return &container{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		pg:      pg,
	}, nil
}

// bootstrap wires storage, services and event fan-out.
func bootstrap(ctx context.Context) (*container, error) {
	rt, err := bootstrapStorage(ctx)
	if err != nil {
		return nil, err
	}
	ctx = contextOrBackground(ctx)

	if rt.pg.Enabled() {
		if rt.cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, rt.pg.PoolHandle(), rt.logger); err != nil {
				rt.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		rt.repos = repository.NewRepositories(rt.pg.PoolHandle())
		rt.transactor = repository.NewTransactor(rt.pg.PoolHandle())
	} else {
		store := memory.NewStore()
		rt.repos = store.Repositories()
		rt.transactor = store
	}

	rt.redis = persistence.NewRedis(rt.cfg.Redis, rt.logger)

	dispatcher := events.NewInMemoryDispatcher()
	var publisher service.Publisher
	if rt.redis != nil {
		publisher = rt.redis
	}
	rt.notifications = service.NewNotificationService(dispatcher, publisher, rt.cfg.Redis.EventsChannel, rt.logger)

	rt.auth = service.NewAuthService(rt.cfg.Auth, rt.repos.Users)
	rt.tickets = service.NewTicketService(service.TicketDependencies{
		Repos:              rt.repos,
		Transactor:         rt.transactor,
		Dispatcher:         dispatcher,
		Logger:             rt.logger,
		EnforceTransitions: rt.cfg.Tickets.EnforceTransitions,
	})
	return rt, nil
}

// httpApp assembles the fiber application.
func (rt *container) httpApp() *fiber.App {
	dependencies := map[string]handlers.Pinger{}
	if rt.pg.Enabled() {
		dependencies["postgres"] = rt.pg
	}
	if rt.redis != nil {
		dependencies["redis"] = rt.redis
	}

	return httptransport.NewApp(*rt.cfg, rt.logger, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(rt.cfg.App.Name, rt.cfg.App.Version, dependencies),
		Users:          handlers.NewUsersHandler(rt.auth),
		Tickets:        handlers.NewTicketsHandler(rt.tickets),
		AuthMiddleware: auth.NewAuthMiddleware(rt.auth.TokenManager()),
		Metrics:        rt.metrics,
	})
}

// Close releases connections and flushes logs.
func (rt *container) Close() {
	rt.redis.Close()
	rt.pg.Close()
	_ = rt.logger.Sync()
}
