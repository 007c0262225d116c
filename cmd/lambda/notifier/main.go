package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/stockroom/internal/config"
	"github.com/example/stockroom/internal/email"
	"github.com/example/stockroom/internal/infrastructure/msk"
	"github.com/example/stockroom/internal/infrastructure/store"
	"github.com/example/stockroom/internal/notification"
)

var notificationHandler *notification.Handler

func init() {
	cfg, err := config.Load("stockroom-lambda-notifier", nil)
	if err != nil {
		log.Fatalf("[Lambda Notifier] Invalid configuration: %v", err)
	}
	if cfg.AlertTo == "" {
		log.Fatal("[Lambda Notifier] ALERT_TO is required")
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Lambda Notifier] Failed to connect to PostgreSQL: %v", err)
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(emailSvc, store.NewPostgresGateway(db, nil), cfg.AlertTo)

	log.Printf("[Lambda Notifier] Initialized successfully (SMTP: %s:%s)", cfg.SMTPHost, cfg.SMTPPort)
}

// handler processes an MSK trigger batch. Undecodable records are skipped.
// Any failed change fails the batch so Lambda retries it; alerts already
// sent are not repeated within a warm instance.
func handler(ctx context.Context, kafkaEvent events.KafkaEvent) error {
	records, decodeErrs := msk.ConvertFromKafkaEvent(kafkaEvent)
	for _, err := range decodeErrs {
		log.Printf("[Lambda Notifier] Skipping record: %v", err)
	}
	log.Printf("[Lambda Notifier] Received %d records", len(records))

	var failed []error
	for _, r := range records {
		if err := notificationHandler.HandleChange(ctx, r.Change); err != nil {
			log.Printf("[Lambda Notifier] Failed to process %s/%d@%d: %v", r.Topic, r.Partition, r.Offset, err)
			failed = append(failed, err)
		}
	}

	log.Printf("[Lambda Notifier] Processed %d/%d records successfully", len(records)-len(failed), len(records))
	if len(failed) > 0 {
		return fmt.Errorf("%d records failed: %w", len(failed), errors.Join(failed...))
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
