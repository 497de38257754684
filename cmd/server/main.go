package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-booking/internal/cache"
	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/config"
	"github.com/iliyamo/seat-booking/internal/database"
	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/middleware"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/repository/memory"
	"github.com/iliyamo/seat-booking/internal/router"
	"github.com/iliyamo/seat-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	clk := clock.System{}

	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Address()).Warn("redis unavailable; rate limiting off, show cache in memory")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		pub := service.NewQueuePublisher(cfg.RabbitMQ.URL)
		defer pub.Close()
		events = pub
	}

	deps := service.Deps{
		Store:  store,
		Shows:  service.NewShows(store, showCache(cfg.Cache, rdb, clk), cacheTTL(cfg.Cache), log),
		Clock:  clk,
		Log:    log,
		Events: events,
	}
	policy, err := cfg.Refund.Policy()
	if err != nil {
		return err
	}
	limits := service.Limits{
		ReservationTTL:     cfg.Booking.ReservationTimeout(),
		MaxExtensions:      cfg.Booking.MaxExtensions,
		MaxSeatsPerBooking: cfg.Booking.MaxSeatsPerBooking,
	}
	inventory := service.NewInventory(deps)
	reservations := service.NewReservations(deps, inventory, limits)
	bookings := service.NewBookings(deps, inventory, reservations, policy, limits)
	reaper := service.NewReaper(reservations, store, clk, log, cfg.Booking.ReaperInterval, cfg.Booking.ReaperBatchSize)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	var health handler.Pinger
	if db != nil {
		health = db
	}
	var limiter echo.MiddlewareFunc
	if rdb != nil {
		limiter = middleware.NewTokenBucket(cfg.RateLimit, rdb, clk, log)
	}
	router.RegisterRoutes(e, router.Handlers{
		Customer: handler.NewCustomerHandler(reservations, bookings),
		Public:   handler.NewPublicHandler(inventory, reservations),
		Health:   handler.Health(health),
	}, cfg.JWTSecret, limiter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.Store.Driver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return reaper.Run(ctx)
	})
	if cfg.RabbitMQ.Enabled && cfg.RabbitMQ.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, queue.LogNotifier(log), log,
			queue.BookingConfirmedQueue, queue.BookingCancelledQueue, queue.ReservationExpiredQueue)
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}
	return g.Wait()
}

// openStore returns the configured store.  db is nil for the memory
// driver.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (repository.Store, *sql.DB, error) {
	if strings.EqualFold(cfg.Store.Driver, "memory") {
		store := memory.New(cfg.Store.LockWaitTimeout)
		seedDemo(store, time.Now().UTC())
		log.Warn("using the in-memory store; data is lost on exit")
		return store, nil, nil
	}

	db, err := database.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Store.InitSchema {
		if err := database.InitSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init schema: %w", err)
		}
		log.Info("database schema ensured")
	}
	return repository.NewMySQLStore(db, cfg.Store.LockWaitTimeout), db, nil
}

func showCache(cfg config.CacheConfig, rdb *redis.Client, clk clock.Clock) cache.Cache[model.Show] {
	if !cfg.Enabled {
		return nil
	}
	if rdb != nil && strings.EqualFold(cfg.Backend, "redis") {
		return cache.NewRedis[model.Show](rdb, cfg.Prefix)
	}
	return cache.NewMemory[model.Show](clk)
}

func cacheTTL(cfg config.CacheConfig) time.Duration {
	if !cfg.Enabled {
		return 0
	}
	return cfg.TTL
}

// seedDemo loads one show with two rows of seats so the memory driver is
// usable without a catalog.
func seedDemo(store *memory.Store, now time.Time) {
	seats := make([]model.Seat, 0, 20)
	for i := uint64(1); i <= 20; i++ {
		row := "A"
		if i > 10 {
			row = "B"
		}
		seat := model.Seat{ID: i, Number: fmt.Sprintf("%s%d", row, (i-1)%10+1)}
		if row == "A" {
			seat.PriceCents = 1500
		}
		seats = append(seats, seat)
	}
	store.AddShow(model.Show{
		ID:             1,
		Title:          "Demo Screening",
		StartsAt:       now.Add(48 * time.Hour).Truncate(time.Hour),
		IsActive:       true,
		BasePriceCents: 1000,
	}, seats)
}
