package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go-callback/internal/admin"
	"go-callback/internal/config"
	"go-callback/internal/dispatch"
	"go-callback/internal/kafka"
	"go-callback/internal/observability"
	"go-callback/internal/sqs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	transport := flag.String("transport", "", "sqs or kafka, overrides TRANSPORT")
	flag.Parse()

	cfg := config.Load()
	if *transport != "" {
		cfg.Transport = strings.ToLower(*transport)
	}

	observability.InitLogger(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		closer := observability.SetOutputFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
		defer closer.Close()
	}
	logger := observability.GetLogger()

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPrometheusMetrics("callback")
	if err := metrics.Register(reg); err != nil {
		logger.WithError(err).Fatal("Failed to register metrics")
	}

	settings := cfg.DispatchSettings()
	logger.WithFields(logrus.Fields{
		"transport":        cfg.Transport,
		"endpoint_url":     settings.EndpointURL,
		"endpoint_delay":   settings.EndpointDelaySeconds,
		"callback_timeout": settings.CallbackTimeout.String(),
	}).Info("Starting callback dispatcher")

	dispatcher := dispatch.New(dispatch.Config{
		Metrics: metrics,
		Logger:  logger,
	})
	handler := dispatcher.Bind(settings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		run    func(ctx context.Context) error
		health admin.HealthChecker
	)

	switch cfg.Transport {
	case config.TransportSQS:
		run, health = sqsTransport(ctx, cfg, handler, logger)
	case config.TransportKafka:
		run, health = kafkaTransport(cfg, handler, metrics)
	}

	server := admin.New(admin.Config{
		Addr:     cfg.Admin.Addr,
		Health:   health,
		Gatherer: reg,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { return run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("Dispatcher stopped with error")
	}
	logger.Info("Dispatcher stopped")
}

func sqsTransport(ctx context.Context, cfg *config.Config, handler dispatch.BatchHandlerFunc, logger *logrus.Logger) (func(context.Context) error, admin.HealthChecker) {
	client, err := sqs.NewClient(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create SQS client")
	}

	poller := sqs.NewPoller(client, handler, sqs.PollerConfig{
		QueueURL:          cfg.SQS.QueueURL,
		MaxMessages:       cfg.SQS.MaxMessages,
		WaitTimeSeconds:   cfg.SQS.WaitTimeSeconds,
		VisibilityTimeout: cfg.SQS.VisibilityTimeout,
		Pollers:           cfg.SQS.Pollers,
		Logger:            logger,
	})
	return poller.Run, poller
}

func kafkaTransport(cfg *config.Config, handler dispatch.BatchHandlerFunc, metrics observability.MetricsCollector) (func(context.Context) error, admin.HealthChecker) {
	zl := observability.NewZapLogger(cfg.Logging.Level)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       cfg.Producer.Acks,
		Retries:    cfg.Producer.Retries,
		Idempotent: cfg.Producer.Idempotent,
		Metrics:    metrics,
		Logger:     zl,
	})

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:          cfg.Kafka.Brokers,
		Topic:            cfg.Consumer.Topic,
		GroupID:          cfg.Consumer.GroupID,
		Workers:          cfg.Consumer.Workers,
		BatchSize:        cfg.Consumer.BatchSize,
		BatchWait:        cfg.Consumer.BatchWait,
		RetryMax:         cfg.Consumer.RetryMax,
		FetchMinBytes:    cfg.Consumer.FetchMinBytes,
		FetchMaxBytes:    cfg.Consumer.FetchMaxBytes,
		RetryTopicPrefix: cfg.Consumer.RetryTopicPrefix,
		DLQTopic:         cfg.Consumer.DLQTopic,
		Metrics:          metrics,
		Logger:           zl,
	}, producer)

	client := kafka.NewKafkaClient(cfg.Kafka.Brokers, 5, cfg.Consumer.Topic)

	run := func(ctx context.Context) error {
		defer zl.Sync()
		defer producer.Close()
		defer consumer.Close()

		// Log-only: kafka-go redials by itself.
		go client.HealthCheckLoop(ctx, 30*time.Second, nil)
		return consumer.Start(ctx, handler)
	}
	return run, client
}
