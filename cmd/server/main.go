package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-ticket-booking/internal/booking"
	"github.com/iliyamo/cinema-ticket-booking/internal/catalog"
	"github.com/iliyamo/cinema-ticket-booking/internal/clock"
	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/database"
	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
	"github.com/iliyamo/cinema-ticket-booking/internal/router"
	"github.com/iliyamo/cinema-ticket-booking/internal/scheduler"
	"github.com/iliyamo/cinema-ticket-booking/internal/seatcache"
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Text)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Redis is optional: without it seat maps are not cached and requests
	// are not rate limited.
	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb == nil {
		logrus.WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	clk := clock.Real()
	tx := repository.NewTransactor(db)
	shows := repository.NewShowRepo(db)

	opts := []booking.Option{booking.WithClock(clk), booking.WithHoldDuration(cfg.Booking.HoldDuration)}
	var invalidator catalog.Invalidator
	if cache := seatcache.New(rdb, ""); cache != nil {
		opts = append(opts, booking.WithCache(cache, cfg.Booking.SeatMapCacheTTL))
		invalidator = cache
	}
	var publisher *queue.Publisher
	if cfg.AMQP.URL != "" {
		publisher = queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		defer publisher.Close()
		opts = append(opts, booking.WithPublisher(publisher))
	}

	bookingSvc := booking.NewService(booking.Repositories{
		Tx:       tx,
		Shows:    shows,
		Seats:    repository.NewSeatRepo(db),
		Locks:    repository.NewSeatLockRepo(db),
		Bookings: repository.NewBookingRepo(db),
	}, opts...)
	catalogSvc := catalog.NewService(tx, shows, repository.NewScreenRepo(db), repository.NewMovieRepo(db), invalidator, clk)

	sweeper, err := scheduler.NewLockSweeper(bookingSvc, cfg.Booking.SweepInterval)
	if err != nil {
		return err
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger())

	bookingH := handler.NewBookingHandler(bookingSvc)
	showH := handler.NewShowHandler(catalogSvc)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg.Auth, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.Auth.JWTSecret)
	router.RegisterPublic(e, showH, bookingH)
	router.RegisterCustomer(e, bookingH, cfg.Auth.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb))
	router.RegisterOwner(e, showH, bookingH, cfg.Auth.JWTSecret)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	if cfg.AMQP.URL != "" {
		consumer := queue.NewAuditConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.AuditQueue, cfg.AMQP.AuditLogPath)
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}

	g.Go(func() error {
		logrus.WithField("addr", cfg.Addr()).WithField("env", cfg.Env).Info("listening")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	return g.Wait()
}
