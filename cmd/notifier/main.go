package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/stockroom/internal/config"
	"github.com/example/stockroom/internal/email"
	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/kafka"
	"github.com/example/stockroom/internal/infrastructure/store"
	"github.com/example/stockroom/internal/notification"
	"github.com/spf13/pflag"
)

// consumerGroup is shared by every notifier instance so each change is
// mailed about once.
const consumerGroup = "stockroom-notifier"

func main() {
	cfg, err := config.Load("stockroom-notifier", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("[Notifier] Invalid configuration: %v", err)
	}
	if cfg.AlertTo == "" {
		log.Fatal("[Notifier] ALERT_TO is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] Stockroom - Low Stock Alerts")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Change feed: %s", cfg.ChangeFeed)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTPHost, cfg.SMTPPort)
	log.Printf("[Notifier] From: %s", cfg.SMTPFrom)
	log.Printf("[Notifier] To:   %s", cfg.AlertTo)

	// The notifier only reads products, so it never announces changes.
	var products gateway.Products
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("[Notifier] Failed to open SQLite: %v", err)
		}
		products = store.NewGormGateway(db, nil)
	default:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[Notifier] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		log.Println("[Notifier] Connected to PostgreSQL")
		products = store.NewPostgresGateway(db, nil)
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, products, cfg.AlertTo)

	switch {
	case cfg.ChangeFeed == config.FeedKafka:
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
		defer consumer.Close()

		go func() {
			log.Printf("[Notifier] Listening to topic: %s", cfg.KafkaTopic)
			if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
				log.Printf("[Notifier] Consumer error: %v", err)
			}
		}()

	case cfg.ChangeFeed == config.FeedPostgres && cfg.DatabaseDriver == config.DriverPostgres:
		sub, err := store.NewNotifyFeed(cfg.DatabaseURL).SubscribeProductChanges(ctx)
		if err != nil {
			log.Fatalf("[Notifier] Failed to listen for changes: %v", err)
		}
		defer sub.Close()

		go func() {
			log.Printf("[Notifier] Listening to channel: %s", store.ProductChangesChannel)
			for c := range sub.Changes() {
				if err := handler.HandleChange(ctx, c); err != nil {
					log.Printf("[Notifier] Failed to handle %s %s: %v", c.Op, c.RowID, err)
				}
			}
		}()

	default:
		log.Fatalf("[Notifier] Change feed %q with backend %q has nothing to listen to", cfg.ChangeFeed, cfg.DatabaseDriver)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Notifier] Shutting down...")
	cancel()
}
