package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/pedalhub/rental-service/internal/api/http"
	"github.com/pedalhub/rental-service/internal/api/http/handlers"
	"github.com/pedalhub/rental-service/internal/auth"
	"github.com/pedalhub/rental-service/internal/cache"
	"github.com/pedalhub/rental-service/internal/config"
	"github.com/pedalhub/rental-service/internal/events"
	"github.com/pedalhub/rental-service/internal/observability"
	"github.com/pedalhub/rental-service/internal/persistence"
	"github.com/pedalhub/rental-service/internal/repository"
	"github.com/pedalhub/rental-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if _, err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	kv := cache.New(redis.Client, cfg.App.Name+":")
	revocations := auth.NewRevocations(kv)

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	userRepo, bikeRepo, rentalRepo := newRepositories(pg, logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:    userRepo,
		Tokens:      tokens,
		Revocations: revocations,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	bikeService := service.NewBikeService(service.BikeDependencies{
		BikeRepo:   bikeRepo,
		RentalRepo: rentalRepo,
		Dispatcher: dispatcher,
	})
	rentalService := service.NewRentalService(service.RentalDependencies{
		RentalRepo: rentalRepo,
		BikeRepo:   bikeRepo,
		Dispatcher: dispatcher,
		OwnerCache: kv,
		OwnerTTL:   cfg.Cache.OwnerTTL,
		Logger:     logger,
	})

	authMiddleware := auth.NewAuthMiddleware(tokens, auth.AuthMiddlewareOptions{
		Revocations:          revocations,
		Logger:               logger,
		Metrics:              metrics,
		ExposeInternalErrors: cfg.Auth.ExposeInternalErrors,
	})

	app := httptransport.NewApp(cfg.App.Name, httptransport.MiddlewareOptions{
		Logger:               logger,
		Metrics:              metrics,
		Timeout:              cfg.App.RequestTimeout(),
		ExposeInternalErrors: cfg.Auth.ExposeInternalErrors,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Bikes:          handlers.NewBikesHandler(bikeService),
		Rentals:        handlers.NewRentalsHandler(rentalService),
		AuthMiddleware: authMiddleware,
		Authorizer:     auth.NewAuthorizer(logger, metrics),
		Gatherer:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newRepositories(pg *persistence.Postgres, logger *zap.Logger) (repository.UserRepository, repository.BikeRepository, repository.RentalRepository) {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("using in-memory storage; data is lost on restart")
		store := repository.NewMemoryStore()
		return store.Users(), store.Bikes(), store.Rentals()
	}
	return repository.NewUserRepository(pool), repository.NewBikeRepository(pool), repository.NewRentalRepository(pool)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
