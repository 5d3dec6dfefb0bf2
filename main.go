package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hamhub/internal/app"
	"hamhub/internal/config"
	"hamhub/internal/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
	log.Info("Server gracefully stopped")
}

// run serves until ctx is cancelled and then shuts the server down.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	application, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.WithError(err).Warn("Error releasing resources")
		}
	}()

	if err := application.StartAuditConsumer(); err != nil {
		log.WithError(err).Warn("Failed to start auth event consumer")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Listen(cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return application.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
