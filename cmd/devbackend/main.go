package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/devbackend"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, "devbackend")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	server := devbackend.New(cfg.DevBackend, logger)
	if cfg.DevBackend.AdminEmail != "" {
		if _, err := server.SeedUser("admin", cfg.DevBackend.AdminEmail, cfg.DevBackend.AdminPassword, domain.RoleAdmin); err != nil {
			logger.Fatal("failed to seed admin", zap.Error(err))
		}
		logger.Info("seeded admin account", zap.String("email", cfg.DevBackend.AdminEmail))
	}

	go func() {
		if err := server.App().Listen(cfg.DevBackend.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.App().Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
