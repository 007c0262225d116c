package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/stockroom/internal/api"
	"github.com/example/stockroom/internal/auth"
	"github.com/example/stockroom/internal/config"
	"github.com/example/stockroom/internal/console"
	"github.com/example/stockroom/internal/gate"
	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/feed"
	"github.com/example/stockroom/internal/infrastructure/kafka"
	"github.com/example/stockroom/internal/infrastructure/store"
	"github.com/spf13/pflag"
)

// sessionSweepInterval is how often consoles of expired or revoked sessions
// are closed.
const sessionSweepInterval = time.Minute

func main() {
	cfg, err := config.Load("stockroom-api", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	if err := cfg.RequireSecret(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("[API] ========================================")
	log.Println("[API] Stockroom - Inventory Console")
	log.Println("[API] ========================================")
	log.Printf("[API] Backend:     %s", cfg.DatabaseDriver)
	log.Printf("[API] Change feed: %s", cfg.ChangeFeed)

	hub := feed.NewHub()
	defer hub.Close()

	// Writes are announced by the database trigger in postgres feed mode,
	// through Kafka in kafka mode and straight to the hub otherwise.
	var publisher gateway.ChangePublisher
	switch {
	case cfg.ChangeFeed == config.FeedKafka:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
		log.Printf("[API] Kafka: %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	case cfg.ChangeFeed == config.FeedPostgres && cfg.DatabaseDriver == config.DriverPostgres:
		// publisher stays nil: the products trigger announces every write
	default:
		publisher = hub
	}

	gw, closeBackend, err := openBackend(cfg, publisher)
	if err != nil {
		log.Fatalf("[API] Failed to open backend: %v", err)
	}
	defer closeBackend()

	var wg sync.WaitGroup
	if err := startUpstream(ctx, &wg, cfg, hub); err != nil {
		log.Fatalf("[API] Failed to start change feed: %v", err)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	registry := console.NewRegistry(gw, gate.New(gw, gw), hub)
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.RunSweeper(ctx, sessionSweepInterval)
	}()

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(registry),
		AuthHandlers: api.NewAuthHandlers(gw, tokens, registry),
		Tokens:       tokens,
		Sessions:     gw,
		WebDir:       cfg.WebDir,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Println("[API] ========================================")
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		log.Println("[API] ========================================")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	registry.CloseAll()
	cancel() // Stop the upstream feed and the sweeper
	wg.Wait()
	log.Printf("[API] Change events dropped for slow consoles: %d", hub.Dropped())
}

// openBackend connects the configured gateway and returns a function that
// releases it.
func openBackend(cfg *config.Config, publisher gateway.ChangePublisher) (gateway.Gateway, func(), error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[API] Using SQLite at %s", cfg.SQLitePath)
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return store.NewGormGateway(db, publisher), closeFn, nil

	default:
		if cfg.Migrations {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("[API] Connected to PostgreSQL")
		return store.NewPostgresGateway(db, publisher), func() { db.Close() }, nil
	}
}

// startUpstream feeds the hub from the configured change source.
func startUpstream(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, hub *feed.Hub) error {
	switch cfg.ChangeFeed {
	case config.FeedPostgres:
		if cfg.DatabaseDriver != config.DriverPostgres {
			log.Println("[API] Postgres change feed needs the postgres backend; using local changes only")
			return nil
		}
		sub, err := store.NewNotifyFeed(cfg.DatabaseURL).SubscribeProductChanges(ctx)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.Run(ctx, sub); err != nil && ctx.Err() == nil {
				log.Printf("[API] Change feed stopped: %v", err)
			}
		}()

	case config.FeedKafka:
		// Every API instance needs every change, so each one reads with its
		// own consumer group, starting from the end of the topic.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-%s-%d", cfg.KafkaGroup, host, os.Getpid())
		consumer := kafka.NewTailConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, group)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer consumer.Close()
			log.Printf("[API] Consuming changes as group %s", group)
			if err := consumer.Consume(ctx, kafka.Forward(hub)); err != nil && ctx.Err() == nil {
				log.Printf("[API] Kafka consumer error: %v", err)
			}
		}()
	}
	return nil
}
