package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/livetranslate/billing-service/api"
	"github.com/livetranslate/billing-service/config/database"
	"github.com/livetranslate/billing-service/config/redis"
	stripeclient "github.com/livetranslate/billing-service/config/stripe"
	"github.com/livetranslate/billing-service/models"
	"github.com/livetranslate/billing-service/processors"
	"github.com/livetranslate/billing-service/utils"
)

const (
	envEnv       = "ENV"
	envSentryDsn = "SENTRY_DSN"
	envPort      = "PORT"

	envDatabaseUrl      = "DATABASE_URL"
	envDatabaseMaxConns = "DATABASE_MAX_CONNECTIONS"

	envStripeSecretKey     = "STRIPE_SECRET_KEY"
	envStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"

	envRedisStoreURL      = "REDIS_STORE_URL"
	envRedisStorePassword = "REDIS_STORE_PASSWORD"
	envRedisStoreDB       = "REDIS_STORE_DB"
	envRedisStoreUseTLS   = "REDIS_STORE_USE_TLS"

	entitlementFlagSet = "entitlements_refreshed"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With("service", "billing_service")
	slog.SetDefault(logger)

	setupGracefulShutdown(cancel, logger)

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv(envSentryDsn),
		Environment:      os.Getenv(envEnv),
		Debug:            false,
		AttachStacktrace: true,
	})
	if err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}
	defer sentry.Flush(2 * time.Second)

	db, err := setupDatabase()
	if err != nil {
		logger.Error("Failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	store := models.NewApiStore(db)

	flagger, err := setupFlagStore(ctx)
	if err != nil {
		logger.Error("Failed to connect to the flag store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	billing := stripeclient.NewClient(stripeclient.Config{
		APIKey:        os.Getenv(envStripeSecretKey),
		WebhookSecret: os.Getenv(envStripeWebhookSecret),
	})

	processor := processors.NewWebhookProcessor(logger, store, billing, flagger)
	cancellations := processors.NewCancellationService(logger, store, billing, flagger)
	server := api.NewServer(logger, billing, processor, cancellations)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", utils.GetEnv(envPort, "8080")),
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	signChan := make(chan os.Signal, 1)
	signal.Notify(signChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()
}

func setupDatabase() (*database.DB, error) {
	maxConns, err := utils.GetEnvAsInt(envDatabaseMaxConns, 10)
	if err != nil {
		return nil, err
	}

	return database.NewConnection(database.DBConfig{
		Url:      os.Getenv(envDatabaseUrl),
		MaxConns: int32(maxConns),
	})
}

// setupFlagStore is optional wiring: without a Redis address the service runs
// with entitlement refresh flagging disabled.
func setupFlagStore(ctx context.Context) (models.Flagger, error) {
	address := os.Getenv(envRedisStoreURL)
	if address == "" {
		return nil, nil
	}

	redisDB, err := utils.GetEnvAsInt(envRedisStoreDB, 0)
	if err != nil {
		return nil, err
	}

	store, err := redis.NewRedisDB(ctx, redis.RedisConfig{
		Address:  address,
		Password: os.Getenv(envRedisStorePassword),
		DB:       redisDB,
		UseTLS:   utils.GetEnvAsBool(envRedisStoreUseTLS, false),
	})
	if err != nil {
		return nil, err
	}

	return models.NewFlagStore(ctx, store, entitlementFlagSet), nil
}
