package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/api"
	"github.com/contentpilot/contentpilot-backend/internal/automation"
	"github.com/contentpilot/contentpilot-backend/internal/config"
	"github.com/contentpilot/contentpilot-backend/internal/content"
	gdb "github.com/contentpilot/contentpilot-backend/internal/db"
	"github.com/contentpilot/contentpilot-backend/internal/log"
	"github.com/contentpilot/contentpilot-backend/internal/metrics"
	"github.com/contentpilot/contentpilot-backend/internal/publish"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"github.com/contentpilot/contentpilot-backend/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting ContentPilot automation server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"store", cfg.Store.Type,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("contentpilot")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Event store
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()
	events, err := gdb.NewEventStore(initCtx, gdb.Config{
		Type:     cfg.Store.Type,
		DSN:      cfg.Store.PostgresDSN,
		MaxConns: cfg.Store.MaxConns,
	}, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize event store", "error", err)
	}
	defer events.Close()
	logger.Infow("Event store initialized", "type", cfg.Store.Type)

	// Activity feed (Redis when reachable, in-memory otherwise)
	activity := store.NewActivityFeed(cfg.Activity.RedisAddr, cfg.Activity.Limit, logger)
	defer activity.Close()

	// Special-date catalog
	catalog := automation.NewCatalog()
	if path := cfg.Scheduler.SpecialDatesFile; path != "" {
		dates, err := automation.LoadSpecialDatesFile(path)
		if err != nil {
			logger.Fatalw("Failed to load special dates", "path", path, "error", err)
		}
		for _, d := range dates {
			catalog.Register(d.Key, d.Name, d.Description, d.Platform)
		}
		logger.Infow("Loaded organization special dates", "path", path, "count", len(dates))
	}

	// Collaborators
	generator := content.New(content.Config{
		Endpoint:          cfg.Generator.URL,
		APIKey:            cfg.Generator.APIKey,
		Timeout:           cfg.Generator.Timeout,
		RequestsPerSecond: cfg.Generator.RequestsPerSecond,
		Burst:             cfg.Generator.Burst,
	}, logger)
	logger.Infow("Content generator configured", "generator", generator.Name())

	publisher := publish.NewRegistry(publish.NewLogPublisher(logger), cfg.Publisher.Strict, logger)
	for platform, url := range cfg.Publisher.Webhooks {
		publisher.Register(platform, publish.NewWebhookPublisher(url, cfg.Publisher.Timeout))
	}
	logger.Infow("Publishers configured", "platforms", publisher.Platforms(), "strict", cfg.Publisher.Strict)

	// Background processes share one context cancelled on shutdown
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalw("Invalid scheduler timezone", "error", err)
	}
	opts := []automation.Option{
		automation.WithBaseContext(bgCtx),
		automation.WithMetrics(metricsObj),
		automation.WithActivity(activity),
	}

	scheduler := automation.NewScheduler(events, catalog, automation.SchedulerConfig{
		LookaheadDays:   cfg.Scheduler.LookaheadDays,
		EventHour:       cfg.Scheduler.EventHour,
		DefaultPlatform: cfg.Scheduler.DefaultPlatform,
		Location:        loc,
	}, logger, opts...)

	poster := automation.NewPoster(events, generator, publisher, automation.PosterConfig{
		Tone:            cfg.Poster.Tone,
		Length:          cfg.Poster.Length,
		ConfirmDelivery: cfg.Poster.ConfirmDelivery,
	}, logger, opts...)

	controller := automation.NewController(scheduler, poster, events, activity, logger)

	if cfg.Scheduler.AutoStart {
		scheduler.Start(cfg.Scheduler.IntervalDays)
		logger.Infow("Scheduler auto-started", "intervalDays", scheduler.IntervalDays())
	}
	if cfg.Poster.AutoStart {
		poster.Start(cfg.Poster.IntervalMinutes)
		logger.Infow("Poster auto-started", "intervalMinutes", poster.IntervalMinutes())
	}

	// Setup WebSocket hub and SSE handler
	wsHub := ws.NewHub(activity, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(activity, cfg.Security.CORSAllowedOrigins, logger)
	go wsHub.Run(bgCtx)

	// Setup API handler and middleware
	readiness := map[string]api.ReadinessCheck{
		"store":     events.Ping,
		"activity":  activity.Ping,
		"generator": generator.Check,
	}
	handler := api.NewHandler(controller, events, readiness, sseHandler.HandleSSE, wsHub.HandleWebSocket, logger, metricsObj)
	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM, metricsHandler)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Streaming routes manage their own lifetime, so no WriteTimeout
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(sseHandler.Close)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server startup failed", "error", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}
		if err := controller.Shutdown(ctx); err != nil {
			logger.Errorw("Automation shutdown failed", "error", err)
		}
		bgCancel()
		if err := metricsObj.Shutdown(ctx); err != nil {
			logger.Warnw("Metrics shutdown failed", "error", err)
		}

		logger.Infow("Server stopped")
	}
}
