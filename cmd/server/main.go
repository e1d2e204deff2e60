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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kasirpos/backend/internal/cache"
	"kasirpos/backend/internal/config"
	"kasirpos/backend/internal/events"
	"kasirpos/backend/internal/httpapi"
	"kasirpos/backend/internal/loyalty"
	"kasirpos/backend/internal/promotion"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/sale"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
	"kasirpos/backend/internal/store/sqlstore"
	"kasirpos/backend/internal/telemetry"
	"kasirpos/backend/internal/txnumber"
)

const defaultSQLitePath = "kasirpos.db"

func main() {
	cfg := config.Load()
	if err := telemetry.InitLogger(cfg.Server.Env); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer telemetry.Sync()
	logger := telemetry.L()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	closers := make([]func() error, 0, 4)
	if cfg.Telemetry.JaegerEndpoint != "" {
		tp, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, cfg.Telemetry.JaegerEndpoint)
		if err != nil {
			logger.Warn("tracer unavailable, spans are dropped", zap.Error(err))
		} else {
			closers = append(closers, func() error { return tp.Shutdown(context.Background()) })
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Fatal("repository unavailable", zap.String("driver", cfg.StoreDriver()), zap.Error(err))
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}
	logger.Info("repository ready", zap.String("driver", cfg.StoreDriver()))

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	var numbers txnumber.Generator = txnumber.NewStoreSequence(cfg.Sale.TransactionPrefix, cfg.Server.Location)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisCache := cache.NewRedisReportCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, reports are not cached", zap.Error(err))
			_ = client.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, client.Close)
			if cfg.Sale.Sequence == "redis" {
				numbers = txnumber.NewRedisSequence(client, cfg.Sale.TransactionPrefix, cfg.Server.Location)
			}
			logger.Info("redis ready", zap.String("addr", cfg.Redis.Addr), zap.String("sequence", cfg.Sale.Sequence))
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
		closers = append(closers, publisher.Close)
		logger.Info("publishing sale events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.TopicSales))
	}

	promotions := promotion.Engine{ClampFixedAmount: cfg.Sale.ClampFixedDiscount}
	reports := report.NewAggregator(repo, report.Options{
		Cache:    reportCache,
		CacheTTL: cfg.ReportCacheTTL(),
		Location: cfg.Server.Location,
	})
	sales := sale.NewProcessor(repo, sale.Options{
		Numbers:               numbers,
		Promotions:            promotions,
		Loyalty:               loyalty.New(cfg.Sale.LoyaltyCentsPerPoint),
		Publisher:             publisher,
		Reports:               reports,
		TaxRatePercent:        cfg.Sale.TaxRatePercent,
		MaxAttempts:           cfg.Sale.MaxAttempts,
		SerializationAttempts: cfg.Sale.SerializationAttempts,
	})
	catalog := service.New(repo, service.Options{
		Promotions:  promotions,
		PhoneRegion: cfg.Server.PhoneRegion,
		Reports:     reports,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.Auth.Secret, time.Duration(cfg.Auth.AccessTokenTTLMinutes)*time.Minute, cfg.Auth.ManagerPIN, repo)
	api := httpapi.New(sales, catalog, reports, auth, cfg.Server.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}
	logger.Info("server stopped")
}

// openRepository opens the configured backend and loads the bootstrap
// users, plus the demo catalog when SEED_DEMO_DATA is on. The memory
// backend always starts seeded.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	switch driver := cfg.StoreDriver(); driver {
	case "memory":
		repo, err := memory.NewSeeded()
		return repo, nil, err
	case "postgres", "sqlite":
		var (
			db  *sqlstore.Store
			err error
		)
		if driver == "postgres" {
			if cfg.Database.URL == "" {
				return nil, nil, errors.New("DATABASE_URL is required for postgres")
			}
			db, err = sqlstore.OpenPostgres(ctx, cfg.Database.URL)
		} else {
			path := cfg.Database.URL
			if path == "" {
				path = defaultSQLitePath
			}
			db, err = sqlstore.OpenSQLite(ctx, path)
		}
		if err != nil {
			return nil, nil, err
		}
		if err := db.SeedUsers(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("seed users: %w", err)
		}
		if cfg.Server.SeedDemoData {
			if err := db.SeedDemo(ctx); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("seed demo data: %w", err)
			}
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown DATABASE_DRIVER %q", driver)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return errors.New("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.Auth.ManagerPIN) < 6 {
		return errors.New("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.Auth.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are not all digits, repeat one
// digit, run in sequence, or appear on the common-PIN list.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errors.New("PIN must contain digits only")
		}
	}

	known := map[string]bool{
		"123456": true, "654321": true, "121212": true, "112233": true,
		"123123": true, "696969": true, "159753": true, "102030": true,
	}
	if known[pin] {
		return errors.New("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return errors.New("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return errors.New("sequential PIN not allowed")
	}
	return nil
}
