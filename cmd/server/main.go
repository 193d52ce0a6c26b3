package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/bellasuite/notify/internal/api"
	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/pkg/distlock"
	"github.com/bellasuite/notify/internal/repository/postgres"
	"github.com/bellasuite/notify/internal/service/budget"
	"github.com/bellasuite/notify/internal/service/consent"
	"github.com/bellasuite/notify/internal/service/deadletter"
	"github.com/bellasuite/notify/internal/service/queue"
	"github.com/bellasuite/notify/internal/service/retrycfg"
	"github.com/bellasuite/notify/internal/service/schedule"
	"github.com/bellasuite/notify/internal/service/webhook"
	"github.com/bellasuite/notify/internal/template"
	"github.com/bellasuite/notify/internal/worker"
)

func main() {
	log.Println("Starting notify server...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		log.Println("Redis connected (locks)")
	}

	// Repositories
	store := postgres.NewNotificationStore(db)
	consentRepo := postgres.NewConsentRepo(db)
	budgetRepo := postgres.NewBudgetRepo(db)
	dlqRepo := postgres.NewDeadLetterRepo(db)
	webhookRepo := postgres.NewWebhookRepo(db)
	retryRepo := postgres.NewRetryConfigRepo(db)
	registry := postgres.NewWorkerRegistry(db)

	// Services
	consentSvc := consent.NewService(consentRepo)
	ledger := budget.NewLedger(budgetRepo, cfg.Budget)
	resolver := retrycfg.NewResolver(retryRepo, cfg.Retry.Global())

	policy, err := schedule.NewPolicy(cfg.QuietHours)
	if err != nil {
		log.Fatalf("Invalid quiet-hours config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.QuietHours.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.QuietHours.Timezone, err)
	}

	queueSvc := queue.NewService(store, consentSvc, ledger, policy, resolver, template.NewRenderer(), queue.Settings{
		DedupeWindow: cfg.Dedupe.Window(),
		Location:     loc,
	})
	dlqSvc := deadletter.NewService(dlqRepo, store, cfg.Retry.MaxAttempts)
	ingestor := webhook.NewIngestor(webhookRepo, consentSvc)

	// Maintenance workers. The distributed locks keep each singleton
	// when several server instances run behind a balancer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recoveryLock := distlock.NewLock(redisClient, db, "notify:recovery", 2*time.Minute)
	recovery := worker.NewQueueRecoveryWorker(store, recoveryLock,
		time.Duration(cfg.Queue.RecoveryIntervalMin)*time.Minute, cfg.Queue.StaleClaimAge())
	go recovery.Start(ctx)

	cleanupLock := distlock.NewLock(redisClient, db, "notify:cleanup", time.Hour)
	cleanup := worker.NewDataCleanupWorker(store, dlqSvc, ingestor, cleanupLock, cfg.Retention)
	go cleanup.Start(ctx)

	// HTTP server
	handlers := api.NewHandlers(queueSvc, dlqSvc, ledger, resolver, consentSvc, ingestor, registry)
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		log.Printf("API server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
