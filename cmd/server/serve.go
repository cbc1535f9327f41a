package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/gamezone-reservation/internal/availability"
	"github.com/iliyamo/gamezone-reservation/internal/booking"
	"github.com/iliyamo/gamezone-reservation/internal/config"
	"github.com/iliyamo/gamezone-reservation/internal/database"
	"github.com/iliyamo/gamezone-reservation/internal/handler"
	"github.com/iliyamo/gamezone-reservation/internal/maintenance"
	"github.com/iliyamo/gamezone-reservation/internal/middleware"
	"github.com/iliyamo/gamezone-reservation/internal/queue"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/router"
	"github.com/iliyamo/gamezone-reservation/internal/service"
)

// ServeCmd runs the API until SIGINT or SIGTERM.
type ServeCmd struct {
	SweepEvery time.Duration `help:"Run the maintenance sweep on this interval; 0 disables it." env:"SWEEP_INTERVAL" default:"0s"`
}

// openDB connects to MySQL and brings the schema up to date.
func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// newPublisher publishes to RabbitMQ when EVENTS_ENABLED is set and drops
// events otherwise.
func newPublisher(log *slog.Logger) queue.Publisher {
	ec := config.LoadEventsConfig()
	if !ec.Enabled {
		return service.NopPublisher{}
	}
	log.Info("events enabled", "queue", ec.Queue)
	return &service.AMQPPublisher{URL: ec.URL, Queue: ec.Queue}
}

func newSweeper(db *sql.DB, events *service.Emitter, log *slog.Logger) *maintenance.Sweeper {
	sc := config.LoadSweepConfig()
	return &maintenance.Sweeper{
		Sessions:          repository.NewSessionRepo(db),
		Reservations:      repository.NewReservationRepo(db),
		SessionMaxAge:     sc.SessionMaxAge,
		ReservationMaxAge: sc.ReservationMaxAge,
		Now:               time.Now,
		Events:            events,
		Logger:            log,
	}
}

func (s *ServeCmd) Run(cli *CLI) error {
	log := cli.logger
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis is optional; without it the cache and limiter stay in process.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	events := service.NewEmitter(newPublisher(log), log)
	admins := repository.NewAdminRepo(db)
	clients := repository.NewClientRepo(db)
	reservations := repository.NewReservationRepo(db)
	sessions := repository.NewSessionRepo(db)
	resolver := availability.NewResolver(repository.NewAvailabilityRepo(db), time.Now)
	sweeper := newSweeper(db, events, log)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	h := router.Handlers{
		Auth: handler.NewAuthHandler(cfg, admins, clients),
		Stations: &handler.StationHandler{
			Stations: repository.NewStationRepo(db),
			Resolver: resolver,
			Sweeper:  sweeper,
			Cache:    cache,
		},
		Reservations: &handler.ReservationHandler{
			Reservations: reservations,
			Booking:      booking.New(db, time.Now, events),
			Cache:        cache,
		},
		Sessions:  &handler.SessionHandler{Sessions: sessions, Events: events, Cache: cache, Now: time.Now},
		Clients:   &handler.ClientHandler{Clients: clients},
		Dashboard: &handler.DashboardHandler{Dashboard: repository.NewDashboardRepo(db), Now: time.Now},
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, cfg.JWTSecret))
	router.Register(e, h, cfg.JWTSecret, cache, admins, clients)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.SweepEvery > 0 {
		go runSweeps(ctx, sweeper, cache, s.SweepEvery, log)
	}

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// runSweeps runs the maintenance sweep every interval until ctx ends.
func runSweeps(ctx context.Context, s *maintenance.Sweeper, cache *middleware.ResponseCache, every time.Duration, log *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Run(ctx); err != nil {
				log.Error("scheduled sweep failed", "err", err)
				continue
			}
			if err := cache.Purge(ctx); err != nil {
				log.Warn("cache purge failed", "err", err)
			}
		}
	}
}
