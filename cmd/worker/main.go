package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/bellasuite/notify/internal/config"
	"github.com/bellasuite/notify/internal/repository/postgres"
	"github.com/bellasuite/notify/internal/sender"
	"github.com/bellasuite/notify/internal/service/budget"
	"github.com/bellasuite/notify/internal/service/consent"
	"github.com/bellasuite/notify/internal/service/queue"
	"github.com/bellasuite/notify/internal/service/retrycfg"
	"github.com/bellasuite/notify/internal/service/schedule"
	"github.com/bellasuite/notify/internal/template"
	"github.com/bellasuite/notify/internal/worker"
)

func main() {
	log.Println("Starting notify send worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	store := postgres.NewNotificationStore(db)
	consentSvc := consent.NewService(postgres.NewConsentRepo(db))
	ledger := budget.NewLedger(postgres.NewBudgetRepo(db), cfg.Budget)
	resolver := retrycfg.NewResolver(postgres.NewRetryConfigRepo(db), cfg.Retry.Global())

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

	pool := worker.NewSendWorkerPool(queueSvc, cfg.Queue)
	pool.SetRegistry(postgres.NewWorkerRegistry(db))

	var emailSender, smsSender sender.Sender
	if cfg.SES.Enabled {
		emailSender = sender.NewSESSender(cfg.SES)
		log.Printf("[Worker] SES sender enabled (region=%s)", cfg.SES.Region)
	}
	if cfg.SMS.Enabled {
		smsSender = sender.NewSMSSender(cfg.SMS, nil)
		log.Println("[Worker] SMS sender enabled")
	}
	if emailSender == nil && smsSender == nil {
		log.Fatal("No senders enabled; set ses.enabled or sms.enabled")
	}
	pool.SetSenders(emailSender, smsSender)

	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		limiter, err := worker.NewRateLimiterFromURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect rate limiter: %v", err)
		}
		defer limiter.Close()
		pool.SetRateLimiter(limiter)
		log.Println("[Worker] Redis rate limiting enabled")
	} else {
		log.Println("[Worker] Redis disabled; sending unthrottled")
	}

	pool.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	pool.Stop()
	log.Println("Worker stopped")
}
