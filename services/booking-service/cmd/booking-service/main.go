package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/careerpath/careerdesk/libs/auth"
	"github.com/careerpath/careerdesk/libs/db"
	"github.com/careerpath/careerdesk/libs/httpx"
	"github.com/careerpath/careerdesk/libs/kafkax"
	otelx "github.com/careerpath/careerdesk/libs/otel"
	"github.com/careerpath/careerdesk/libs/runtime"
	"github.com/careerpath/careerdesk/services/booking-service/internal/accounts"
	"github.com/careerpath/careerdesk/services/booking-service/internal/booking"
	"github.com/careerpath/careerdesk/services/booking-service/internal/catalog"
	"github.com/careerpath/careerdesk/services/booking-service/internal/consumer"
	"github.com/careerpath/careerdesk/services/booking-service/internal/handlers"
	"github.com/careerpath/careerdesk/services/booking-service/internal/inbox"
	"github.com/careerpath/careerdesk/services/booking-service/internal/outbox"
	"github.com/careerpath/careerdesk/services/booking-service/internal/reminders"
	"github.com/careerpath/careerdesk/services/booking-service/internal/storage"
	"github.com/careerpath/careerdesk/services/booking-service/internal/timepolicy"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, s, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, s, logger); err != nil {
		logger.Error("booking-service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, s settings, logger *slog.Logger) error {
	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.ServiceName)
	if err != nil {
		return err
	}
	shutdownTracing, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := storage.Migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	outboxRepo := outbox.NewRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo, s.Location)
	reminderRepo := storage.NewReminderRepository(pool, outboxRepo, bookingRepo)
	policyRepo := storage.NewTimePolicyRepository(pool)
	accountRepo := storage.NewAccountRepository(pool)

	var (
		rdb        *redis.Client
		limiter    httpx.Limiter
		catalogSrc catalog.Source = storage.NewCatalogRepository(pool)
		window                    = time.Minute
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, window, cfg.ServiceName)
		catalogSrc = catalog.NewCache(rdb, catalogSrc, cfg.CatalogCacheTTL, logger)
	} else {
		logger.Warn("REDIS_ADDR not set; using in-process rate limiter and uncached catalog")
		limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, window)
	}

	bookings := booking.NewService(bookingRepo, catalogSrc, reminders.NewPlanner(s.ReminderOffsets), booking.Config{
		Location:                   s.Location,
		SlotStep:                   s.SlotStep,
		ResetConfirmedOnReschedule: cfg.RescheduleResetsConfirmation,
		MaxRangeDays:               cfg.SlotRangeMaxDays,
	}, logger)

	signer, err := auth.NewHS256(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	background := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			logger.Info("background worker stopped", "worker", name)
		}()
	}

	sweeper := reminders.NewSweeper(reminderRepo, logger, reminders.SweeperConfig{
		Schedule:  cfg.ReminderSweepSchedule,
		BatchSize: cfg.ReminderSweepBatch,
		Location:  s.Location,
	})
	sweepErr := make(chan error, 1)
	background("reminder-sweeper", func(ctx context.Context) { sweepErr <- sweeper.Run(ctx) })

	if len(s.Brokers) > 0 {
		writer := outbox.NewKafkaWriter(s.Brokers)
		defer writer.Close()
		publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{PollEvery: cfg.OutboxPollInterval})
		background("outbox-publisher", publisher.Run)

		reader := consumer.NewKafkaReader(consumer.Config{
			Brokers: s.Brokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  cfg.KafkaResultTopics,
		})
		recorder := reminders.NewRecorder(reminderRepo, logger)
		results := consumer.New(logger, reader, inbox.NewRepository(pool), recorder.HandleMessage)
		background("notification-results", results.Run)
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished and dispatcher results are not consumed")
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(s.Brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.Brokers)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMux(checks...)
	handlers.Routes{
		Bookings:   handlers.NewBookingHandler(bookings, logger),
		TimePolicy: handlers.NewTimePolicyHandler(timepolicy.NewService(policyRepo), logger),
		Accounts:   handlers.NewAccountHandler(accounts.NewBuilder(accountRepo, cfg.BcryptCost), logger),
		Auth:       signer,
	}.Register(mux)

	h := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: cfg.CORSAllowedOrigins}),
		httpx.RateLimit(limiter, logger, true),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(h, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("booking-service listening", "addr", srv.Addr, "timezone", s.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-sweepErr:
		runErr = err
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
	return runErr
}
