package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fipetracker/server/config"
	"fipetracker/server/internal/api"
	"fipetracker/server/internal/comparison"
	"fipetracker/server/internal/database"
	"fipetracker/server/internal/inflation"
	"fipetracker/server/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("Unknown log level, keeping info")
	}

	// The price tables are written by the ingestion job; this process only reads them
	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.NewReadOnlyDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	// Initialize inflation provider
	var provider comparison.InflationProvider
	if cfg.Inflation.Enabled {
		provider = inflation.NewClient(cfg.Inflation.BaseURL, cfg.Inflation.Series, cfg.Inflation.Timeout, logger)
	} else {
		logger.Info("Inflation lookups disabled, real depreciation will be null")
	}

	// Initialize comparison sessions and their janitor
	sessions := session.NewStore(cfg.Session.TTL, logger)
	janitor := session.NewJanitor(sessions, cfg.Session.SweepInterval, logger)
	janitor.Start()
	defer janitor.Stop()

	// Initialize router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := api.NewHandler(db, cfg, provider, sessions, logger)
	if err := api.SetupRoutes(router, handler, cfg); err != nil {
		logger.WithError(err).Fatal("Failed to set up routes")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           otelhttp.NewHandler(router, cfg.Tracing.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
