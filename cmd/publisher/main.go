package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"go-callback/internal/config"
	"go-callback/internal/kafka"
	"go-callback/internal/observability"
	"go-callback/internal/sqs"
	"go-callback/pkg/models"

	"github.com/google/uuid"
)

func main() {
	transport := flag.String("transport", "", "sqs or kafka, overrides TRANSPORT")
	batches := flag.Int("batches", 10, "number of batches to send")
	size := flag.Int("size", 10, "messages per batch")
	poison := flag.Bool("poison", false, "put a poison message in every batch")
	flag.Parse()

	cfg := config.Load()
	if *transport != "" {
		cfg.Transport = strings.ToLower(*transport)
	}
	observability.InitLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		total int
		err   error
	)
	switch cfg.Transport {
	case config.TransportSQS:
		total, err = publishSQS(ctx, cfg, *batches, *size, *poison)
	case config.TransportKafka:
		total, err = publishKafka(ctx, cfg, *batches, *size, *poison)
	default:
		log.Fatalf("unknown transport %q", cfg.Transport)
	}

	fmt.Printf("Total sent %d messages\n", total)
	if err != nil {
		log.Fatal(err)
	}
}

func publishSQS(ctx context.Context, cfg *config.Config, batches, size int, poison bool) (int, error) {
	if cfg.SQS.QueueURL == "" {
		return 0, fmt.Errorf("SQS_QUEUE_URL is required")
	}

	client, err := sqs.NewClient(ctx)
	if err != nil {
		return 0, err
	}
	publisher := sqs.NewPublisher(client, cfg.SQS.QueueURL, nil, observability.GetLogger())

	fmt.Printf("Sending batch messages to %s\n", cfg.SQS.QueueURL)

	total := 0
	for b := 0; b < batches; b++ {
		result, err := publisher.PublishBatch(ctx, demoBatch(b, size, poison))
		if err != nil {
			return total, err
		}

		for _, s := range result.Sent {
			fmt.Printf("  For ID '%s': Message ID = %s\n", s.ID, s.MessageID)
		}
		for _, f := range result.Failed {
			fmt.Printf("  Failed ID '%s': Code = %s, Message = %s\n", f.ID, f.Code, f.Message)
		}
		fmt.Printf("Successfully sent %d messages with batch id (%d)\n", len(result.Sent), b)
		total += len(result.Sent)
	}
	return total, nil
}

func publishKafka(ctx context.Context, cfg *config.Config, batches, size int, poison bool) (int, error) {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       cfg.Producer.Acks,
		Retries:    cfg.Producer.Retries,
		Idempotent: cfg.Producer.Idempotent,
		Logger:     observability.NewZapLogger(cfg.Logging.Level),
	})
	defer producer.Close()

	fmt.Printf("Sending batch messages to topic %s\n", cfg.Producer.Topic)

	total := 0
	for b := 0; b < batches; b++ {
		entries := demoBatch(b, size, poison)
		if err := producer.PublishBatch(ctx, cfg.Producer.Topic, toRecords(entries)); err != nil {
			return total, err
		}
		fmt.Printf("Successfully sent %d messages with batch id (%d)\n", len(entries), b)
		total += len(entries)
	}
	return total, nil
}

func toRecords(entries []sqs.Entry) []kafka.Record {
	records := make([]kafka.Record, 0, len(entries))
	for _, e := range entries {
		headers := make(map[string]string, len(e.Attributes)+1)
		for k, v := range e.Attributes {
			headers[k] = v
		}
		headers[models.HeaderMessageID] = uuid.NewString()

		records = append(records, kafka.Record{
			Key:     e.ID,
			Value:   []byte(e.Body),
			Headers: headers,
		})
	}
	return records
}
