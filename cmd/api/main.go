package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/bankcore/banking-api/internal/api/http"
	"github.com/bankcore/banking-api/internal/api/http/handlers"
	"github.com/bankcore/banking-api/internal/auth"
	"github.com/bankcore/banking-api/internal/config"
	"github.com/bankcore/banking-api/internal/events"
	"github.com/bankcore/banking-api/internal/observability"
	"github.com/bankcore/banking-api/internal/persistence"
	"github.com/bankcore/banking-api/internal/policy"
	"github.com/bankcore/banking-api/internal/repository"
	"github.com/bankcore/banking-api/internal/service"
	"github.com/bankcore/banking-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	dependencies := map[string]handlers.Pinger{"postgres": pg}

	var revocations auth.RevocationStore
	switch cfg.Auth.RevocationBackend {
	case config.RevocationBackendMemory:
		logger.Warn("using in-memory revocation store; revocations are not shared between instances")
		revocations = auth.NewMemoryRevocationStore(time.Now)
	default:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		dependencies["redis"] = redis
		revocations = auth.NewRedisRevocationStore(redis.Client, auth.DefaultRevocationPrefix)
	}
	if !cfg.Auth.FailClosed() {
		logger.Warn("revocation lookups fail open; tokens are accepted while the store is unreachable")
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfigFrom(cfg.Auth), revocations, auth.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}

	roles, err := rolePolicy(ctx, cfg.Auth)
	if err != nil {
		logger.Fatal("failed to load role policy", zap.Error(err))
	}

	customerRepo := repository.NewCustomerRepository(pg.PoolHandle())
	resolver := auth.NewPrincipalResolver(customerRepo, roles)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Customers:   customerRepo,
		Tokens:      tokens,
		Resolver:    resolver,
		Dispatcher:  dispatcher,
		Logger:      logger,
		ResetSender: service.NewLogResetTokenSender(logger),
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        cfg.App.RequestTimeout(),
		Gateway:        auth.NewGatewayTrustGate(cfg.Gateway, logger, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger, metrics),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Auth:      handlers.NewAuthHandler(authService),
		Customers: handlers.NewCustomersHandler(authService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func rolePolicy(ctx context.Context, cfg config.AuthConfig) (auth.RolePolicy, error) {
	if cfg.RolePolicy == config.RolePolicyRego {
		return policy.LoadRegoRolePolicy(ctx, cfg.RolePolicyFile, cfg.AdminIdentifier)
	}
	return auth.AdminIdentifierPolicy{AdminIdentifier: cfg.AdminIdentifier}, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
