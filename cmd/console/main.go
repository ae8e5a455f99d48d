package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/api/client"
	httptransport "github.com/spec-kit/trader-console/internal/api/http"
	"github.com/spec-kit/trader-console/internal/api/http/handlers"
	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/events"
	"github.com/spec-kit/trader-console/internal/gateway"
	"github.com/spec-kit/trader-console/internal/observability"
	"github.com/spec-kit/trader-console/internal/repository"
	"github.com/spec-kit/trader-console/internal/service"
	"github.com/spec-kit/trader-console/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, "console")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	store, closeStore := repository.OpenCredentialStore(ctx, cfg, logger)
	defer closeStore()

	dispatcher := events.NewInMemoryDispatcher()

	// The gateway reads the credential from the session service built below.
	var sessions *service.SessionService
	gw := gateway.New(cfg.Backend,
		gateway.CredentialFunc(func() domain.Credential { return sessions.Credential() }),
		logger, gateway.WithMetrics(metrics))

	authClient := client.NewAuthClient(gw)
	resources := client.NewResources(gw)

	sessions = service.NewSessionService(service.SessionDependencies{
		Store:      store,
		Exchange:   authClient,
		Decoder:    auth.NewTokenManager(cfg.Auth.VerifySecret, 0),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	}, logger)

	dashboard := service.NewDashboardService(service.DashboardFetches(resources), sessions, dispatcher, logger, metrics)
	worker.StartDashboardWorker(dashboard)

	snapshot := sessions.Load(ctx)
	logger.Info("session loaded", zap.String("state", string(snapshot.State)))

	guard := auth.NewGuard(sessions, auth.DefaultRoutes())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.Backend.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, resources),
		Session:           handlers.NewSessionHandler(sessions),
		Views:             handlers.NewViewsHandler(guard),
		Dashboard:         handlers.NewDashboardHandler(dashboard),
		Resources:         handlers.NewResourcesHandler(resources, sessions),
		SessionMiddleware: auth.NewSessionMiddleware(sessions),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
