package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Inkwell/internal/app"
	"github.com/markdave123-py/Inkwell/internal/config"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	app.ConfigureLogging(cfg)

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		logrus.Fatalf("startup failed: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(application.Server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return application.Server.Shutdown(shutdownCtx)
	})

	logrus.Info("Inkwell is running; DB connected and bootstrapped.")
	runErr := g.Wait()
	if err := application.Close(); err != nil {
		logrus.WithError(err).Error("close resources")
	}
	if runErr != nil {
		logrus.WithError(runErr).Error("server stopped")
		os.Exit(1)
	}
	logrus.Info("shut down cleanly")
}
