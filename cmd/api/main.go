package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fheinonen/helsinki-moves/internal/adapters/digitransit"
	"github.com/fheinonen/helsinki-moves/internal/adapters/http"
	natsadapter "github.com/fheinonen/helsinki-moves/internal/adapters/nats"
	"github.com/fheinonen/helsinki-moves/internal/adapters/valkey"
	"github.com/fheinonen/helsinki-moves/internal/core/ports"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
	"github.com/fheinonen/helsinki-moves/internal/pkg/config"
	"github.com/fheinonen/helsinki-moves/internal/pkg/logging"
	"github.com/fheinonen/helsinki-moves/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("helsinki-moves-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Digitransit upstream
	client := digitransit.NewClient(cfg.Digitransit.APIKey,
		digitransit.WithRoutingEndpoint(cfg.Digitransit.RoutingURL),
		digitransit.WithGeocodingEndpoint(cfg.Digitransit.GeocodingURL),
	)
	routing := digitransit.NewRouting(client)
	geocoder := digitransit.NewGeocoder(client)

	// Preference storage (optional)
	var prefs *valkey.PrefStore
	if cfg.Valkey.Addr != "" {
		prefs, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, preferences stay in memory", "error", err)
			prefs = nil
		} else {
			defer prefs.Close()
		}
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		publisher = nc
		defer nc.Close()
	}

	// Raw NATS connection for readiness checks and relays
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats conn unavailable", "error", err)
	}

	// Use cases
	geocodeSvc := usecases.NewGeocodeService(geocoder, nil)
	departureSvc := usecases.NewDepartureService(routing)

	deps := &http.Dependencies{
		Geocode:         geocodeSvc,
		Departures:      departureSvc,
		Publisher:       publisher,
		NATS:            natsConn,
		Prefs:           prefs,
		RefreshInterval: time.Duration(cfg.Board.RefreshSeconds) * time.Second,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // board requests are tiny
		AppName:      "Helsinki Moves API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
