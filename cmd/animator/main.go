package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"car-animator/internal/anim"
	"car-animator/internal/config"
	"car-animator/internal/db"
	"car-animator/internal/fetch"
	"car-animator/internal/logging"
	"car-animator/internal/metrics"
	"car-animator/internal/publisher"
	"car-animator/internal/server"
	"car-animator/internal/sim"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "car-animator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector(cfg.StepDelay, cfg.DwellDelay)

	client := fetch.NewClient(fetch.Config{
		LocationsURL:  cfg.LocationsURL,
		DirectionsURL: cfg.DirectionsURL,
		APIKey:        cfg.DirectionsAPIKey,
		Timeout:       cfg.HTTPTimeout,
		Retries:       cfg.FetchRetries,
	}, log.Named("fetch"), mcol)

	// Placemarks come from the location API unless a database is configured
	var places sim.PlacemarkSource = client
	if cfg.PlacemarkSource == config.SourcePostgres {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db open error", zap.Error(err))
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatal("db ping error", zap.Error(err))
		}
		places = db.Source{DB: sqlDB, Route: cfg.RouteName}
		log.Info("placemarks from postgres", zap.String("route", cfg.RouteName))
	}

	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, cfg.LogNATSSubjects, mcol, log.Named("nats"))
	if err != nil {
		log.Fatal("nats error", zap.Error(err))
	}
	defer pub.Close()

	animator := anim.New(anim.Options{
		StepDelay:  cfg.StepDelay,
		DwellDelay: cfg.DwellDelay,
	})
	runner := sim.NewRunner(places, client, pub, animator, mcol, log.Named("sim"), sim.Options{
		Vehicle: cfg.VehicleID,
		Loop:    cfg.Loop,
	})

	if cfg.HTTPAddr != "" {
		if cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.Serve(cfg.HTTPAddr, server.NewRouter(runner, mcol.Handler(), log.Named("http")), log)
		defer func() {
			if err := server.Shutdown(srv); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
		}()
	}

	err = runner.Run(ctx)
	switch {
	case err == nil:
		log.Info("route completed", zap.String("vehicle", cfg.VehicleID))
	case errors.Is(err, context.Canceled):
		log.Info("shutdown requested")
	default:
		log.Error("animation failed", zap.Error(err))
	}

	// Keep the status endpoint up after a one-shot run until asked to stop
	if err == nil && cfg.HTTPAddr != "" {
		<-ctx.Done()
	}
	log.Info("shutdown complete")
}
