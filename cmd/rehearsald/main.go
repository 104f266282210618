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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/config"
	httptransport "github.com/example/rehearsal-scheduler/internal/http"
	"github.com/example/rehearsal-scheduler/internal/logging"
	"github.com/example/rehearsal-scheduler/internal/notify"
	"github.com/example/rehearsal-scheduler/internal/persistence/adapter"
	"github.com/example/rehearsal-scheduler/internal/persistence/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logging.New(os.Stderr, "info", false)
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogConsole)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger); err != nil {
		logger.Error().Err(err).Msg("scheduler exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("failed to close storage")
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	checks := map[string]httptransport.HealthCheck{"sqlite": storage.Ping}
	var notifier application.Notifier = notify.NewLogPublisher(logger)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = client.Close() }()
		publisher := notify.NewRedisPublisher(client, cfg.Redis.ChannelPrefix)
		notifier = publisher
		checks["redis"] = publisher.Ping
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := newApp(cfg, storage, notifier, registry, checks, logger)

	if cfg.Metrics.Enabled {
		go serve(ctx, metricsServer(cfg.Metrics.Port, registry), "metrics", logger)
	}
	if cfg.AutoCompleteInterval > 0 {
		go runAutoComplete(ctx, app.rehearsals, cfg.AutoCompleteInterval, logger)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Info().Str("addr", server.Addr).Str("timezone", cfg.Location.String()).Msg("rehearsal scheduler listening")
	return serve(ctx, server, "api", logger)
}

// app is the wired service graph behind the HTTP handler.
type app struct {
	handler    http.Handler
	rehearsals *application.RehearsalService
}

func newApp(cfg config.Config, storage *sqlite.Storage, notifier application.Notifier, reg prometheus.Registerer, checks map[string]httptransport.HealthCheck, logger *zerolog.Logger) *app {
	idGenerator := uuid.NewString
	now := time.Now

	users := adapter.NewUserRepository(storage.Users)
	bands := adapter.NewBandRepository(storage.Bands)
	avail := adapter.NewAvailabilityRepository(storage.Availability)
	rehearsals := adapter.NewRehearsalRepository(storage.Rehearsals)

	metrics := application.NewMetrics(reg)
	engine := availability.NewEngine(cfg.Location, cfg.Lookahead())

	userService := application.NewUserService(users, application.DefaultArgon2idParams, idGenerator, now, logger)
	bandService := application.NewBandService(bands, users, rehearsals, idGenerator, now, logger)
	availabilityService := application.NewAvailabilityService(avail, idGenerator, now, logger)
	schedulingService := application.NewSchedulingService(bands, avail, engine, cfg.SuggestionLimit, metrics, logger)
	rehearsalService := application.NewRehearsalService(rehearsals, bands, users, notifier, metrics, idGenerator, now, logger)

	limiter := httptransport.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window).
		KeyByActingUser(cfg.RateLimit.TrustActingUser)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Health:       httptransport.NewHealthHandler(checks, now, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Bands:        httptransport.NewBandHandler(bandService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, schedulingService, logger),
		Rehearsals:   httptransport.NewRehearsalHandler(rehearsalService, logger),
		Scheduling:   httptransport.NewSchedulingHandler(schedulingService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			limiter.Middleware(logger),
		},
		Logger: logger,
	})

	return &app{handler: router, rehearsals: rehearsalService}
}

func metricsServer(port int, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", name).Msg("failed to shutdown server")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server encountered error")
		return err
	}
	return nil
}

type sweeper interface {
	SweepElapsed(ctx context.Context) (int, error)
}

// runAutoComplete periodically completes rehearsals whose end has passed.
func runAutoComplete(ctx context.Context, s sweeper, every time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepElapsed(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("auto-completion sweep failed")
			}
		}
	}
}
