package config

import (
	"os"
	"strings"
	"time"

	"go-callback/internal/dispatch"
	"go-callback/internal/observability"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const (
	TransportSQS   = "sqs"
	TransportKafka = "kafka"
)

type Config struct {
	Transport  string
	Dispatcher DispatcherConfig
	SQS        SQSConfig
	Kafka      KafkaConfig
	Consumer   ConsumerConfig
	Producer   ProducerConfig
	Logging    LoggingConfig
	Admin      AdminConfig
}

// DispatcherConfig holds the callback settings. Missing or unparsable values
// fall back to zero, which cancels every callback immediately.
type DispatcherConfig struct {
	EndpointURL          string
	EndpointDelaySeconds int
	TimeoutSeconds       int
}

type SQSConfig struct {
	QueueURL          string
	MaxMessages       int
	WaitTimeSeconds   int
	VisibilityTimeout int
	Pollers           int

	// PartialBatchResponse enables Lambda batch item failure reporting.
	PartialBatchResponse bool
}

type KafkaConfig struct {
	Brokers []string
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type ConsumerConfig struct {
	Topic            string
	GroupID          string
	Workers          int
	BatchSize        int
	BatchWait        time.Duration
	RetryMax         int
	FetchMinBytes    int
	FetchMaxBytes    int
	RetryTopicPrefix string
	DLQTopic         string
}

type ProducerConfig struct {
	Topic      string
	Acks       int
	Retries    int
	Idempotent bool
}

type AdminConfig struct {
	Addr string
}

func Load() *Config {
	loadDotEnv()
	return &Config{
		Transport:  strings.ToLower(getEnv("TRANSPORT", TransportSQS)),
		Dispatcher: loadDispatcher(),
		SQS: SQSConfig{
			QueueURL:          getEnv("SQS_QUEUE_URL", ""),
			MaxMessages:       getEnvInt("SQS_MAX_MESSAGES", 10),
			WaitTimeSeconds:   getEnvInt("SQS_WAIT_TIME_SECONDS", 20),
			VisibilityTimeout: getEnvInt("SQS_VISIBILITY_TIMEOUT", 60),
			Pollers:           getEnvInt("SQS_POLLERS", 1),

			PartialBatchResponse: getEnvBool("SQS_PARTIAL_BATCH_RESPONSE", false),
		},
		Kafka: KafkaConfig{
			Brokers: parseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092")),
		},
		Consumer: ConsumerConfig{
			Topic:            getEnv("KAFKA_CONSUMER_TOPIC", "callbacks"),
			GroupID:          getEnv("KAFKA_CONSUMER_GROUP_ID", "callback-dispatcher"),
			Workers:          getEnvInt("KAFKA_CONSUMER_WORKERS", 1),
			BatchSize:        getEnvInt("KAFKA_BATCH_SIZE", 10),
			BatchWait:        time.Duration(getEnvInt("KAFKA_BATCH_WAIT_MS", 1000)) * time.Millisecond,
			RetryMax:         getEnvInt("KAFKA_CONSUMER_RETRY_MAX", 3),
			FetchMinBytes:    getEnvInt("KAFKA_CONSUMER_FETCH_MIN_BYTES", 1),
			FetchMaxBytes:    getEnvInt("KAFKA_CONSUMER_FETCH_MAX_BYTES", 10485760),
			RetryTopicPrefix: getEnv("KAFKA_RETRY_TOPIC_PREFIX", "callbacks-retry"),
			DLQTopic:         getEnv("KAFKA_DLQ_TOPIC", "callbacks-dlq"),
		},
		Producer: ProducerConfig{
			Topic:      getEnv("KAFKA_PRODUCER_TOPIC", "callbacks"),
			Acks:       parseAcks(getEnv("KAFKA_PRODUCER_ACKS", "all")),
			Retries:    getEnvInt("KAFKA_PRODUCER_RETRIES", 3),
			Idempotent: getEnvBool("KAFKA_PRODUCER_IDEMPOTENT", true),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		},
		Admin: AdminConfig{
			Addr: getEnv("ADMIN_ADDR", ":9090"),
		},
	}
}

// LoadSettings reads only the dispatcher variables. The Lambda entry point
// calls it once per invocation.
func LoadSettings() dispatch.Settings {
	return loadDispatcher().Settings()
}

// DispatchSettings returns the immutable settings handed to the dispatcher.
func (c *Config) DispatchSettings() dispatch.Settings {
	return c.Dispatcher.Settings()
}

func (c DispatcherConfig) Settings() dispatch.Settings {
	return dispatch.Settings{
		EndpointURL:          c.EndpointURL,
		EndpointDelaySeconds: c.EndpointDelaySeconds,
		CallbackTimeout:      time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

func loadDispatcher() DispatcherConfig {
	return DispatcherConfig{
		EndpointURL:          getEnv("ENDPOINT_URL", dispatch.DefaultEndpointURL),
		EndpointDelaySeconds: getEnvInt("ENDPOINT_DELAY_SECONDS", 0),
		TimeoutSeconds:       getEnvInt("TIMEOUT_SECONDS", 0),
	}
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		observability.WithField("error", err.Error()).Warn("failed to read .env file")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	digits, ok := decimalString(value)
	intValue, err := cast.ToIntE(digits)
	if !ok || err != nil {
		observability.WithFields(logrus.Fields{
			"key":     key,
			"value":   value,
			"default": defaultValue,
		}).Warn("invalid integer in environment, using default")
		return defaultValue
	}
	return intValue
}

// decimalString trims value and strips leading zeros so cast does not read
// it as octal. Anything other than an optionally signed run of base-10
// digits is rejected, which rules out hex, binary and fractions.
func decimalString(value string) (string, bool) {
	value = strings.TrimSpace(value)
	sign := ""
	if value != "" && (value[0] == '-' || value[0] == '+') {
		sign, value = value[:1], value[1:]
	}
	if value == "" {
		return "", false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	value = strings.TrimLeft(value, "0")
	if value == "" {
		value = "0"
	}
	if sign == "-" {
		value = sign + value
	}
	return value, true
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := cast.ToBoolE(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, broker := range parts {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseAcks(acks string) int {
	switch strings.ToLower(acks) {
	case "all", "-1":
		return -1
	case "0":
		return 0
	case "1":
		return 1
	default:
		return -1 // default to all
	}
}
