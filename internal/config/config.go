// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case and map onto koanf struct tags.
// - New returns defaults; Load layers a YAML file and TRIALS_* env vars on top.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
)

// Store, object store and notifier drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverDynamo   = "dynamodb"
	DriverMinio    = "minio"
	DriverS3       = "s3"
	DriverNone     = "none"
	DriverHTTP     = "http"
	DriverKafka    = "kafka"
	DriverSQS      = "sqs"
)

var (
	storeDrivers    = []string{DriverMemory, DriverPostgres, DriverDynamo}
	objectDrivers   = []string{DriverMemory, DriverMinio, DriverS3}
	notifierDrivers = []string{DriverNone, DriverHTTP, DriverKafka, DriverSQS}
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFile enables a rotated JSON log file next to console output.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ResultQueueSize bounds the in-memory result queue.
	ResultQueueSize int `koanf:"result_queue_size"`
	// WorkerCount sets the number of result workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the size of the result de-duplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	MaxVideoBytes   int64 `koanf:"max_video_bytes"`
	CommitRetries   int   `koanf:"commit_retries"`
	NotifyTimeoutMS int   `koanf:"notify_timeout_ms"`
	// MaxListLimit caps ?limit on listing endpoints.
	MaxListLimit int `koanf:"max_list_limit"`

	StoreDriver         string `koanf:"store_driver"`
	PostgresDSN         string `koanf:"postgres_dsn"`
	DynamoAttemptsTable string `koanf:"dynamo_attempts_table"`
	DynamoAthletesTable string `koanf:"dynamo_athletes_table"`

	// AWSRegion and AWSEndpoint apply to DynamoDB, S3 and SQS. The endpoint
	// override is for local emulators.
	AWSRegion   string `koanf:"aws_region"`
	AWSEndpoint string `koanf:"aws_endpoint"`

	ObjectStoreDriver string `koanf:"object_store_driver"`
	MinioEndpoint     string `koanf:"minio_endpoint"`
	MinioAccessKey    string `koanf:"minio_access_key"`
	MinioSecretKey    string `koanf:"minio_secret_key"`
	MinioSecure       bool   `koanf:"minio_secure"`
	Bucket            string `koanf:"bucket"`
	PublicBaseURL     string `koanf:"public_base_url"`

	NotifierDriver string `koanf:"notifier_driver"`
	AnalysisURL    string `koanf:"analysis_url"`
	// KafkaBrokers is a comma separated broker list.
	KafkaBrokers  string `koanf:"kafka_brokers"`
	AnalysisTopic string `koanf:"analysis_topic"`
	// ResultsTopic enables the Kafka result consumer when set.
	ResultsTopic string `koanf:"results_topic"`
	ResultsGroup string `koanf:"results_group"`
	SQSQueueURL  string `koanf:"sqs_queue_url"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		ResultQueueSize:     1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		MaxVideoBytes:       200 << 20,
		CommitRetries:       2,
		NotifyTimeoutMS:     10_000,
		MaxListLimit:        100,
		StoreDriver:         DriverMemory,
		DynamoAttemptsTable: "test_attempts",
		DynamoAthletesTable: "athlete_profiles",
		AWSRegion:           "us-east-1",
		ObjectStoreDriver:   DriverMemory,
		Bucket:              "videos",
		NotifierDriver:      DriverNone,
		AnalysisTopic:       "attempt-analysis",
		ResultsGroup:        "trials-results",
	}
}

// NotifyTimeout returns NotifyTimeoutMS as a duration.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMS) * time.Millisecond
}

// Validate checks ranges, drivers and driver-specific settings.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ResultQueueSize < 1:
		return fmt.Errorf("%w: result_queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxVideoBytes < 1:
		return fmt.Errorf("%w: max_video_bytes must be positive", ErrInvalidConfig)
	case c.CommitRetries < 0:
		return fmt.Errorf("%w: commit_retries must not be negative", ErrInvalidConfig)
	case c.NotifyTimeoutMS < 1:
		return fmt.Errorf("%w: notify_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxListLimit < 1:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}

	if err := oneOf("store_driver", c.StoreDriver, storeDrivers); err != nil {
		return err
	}
	if err := oneOf("object_store_driver", c.ObjectStoreDriver, objectDrivers); err != nil {
		return err
	}
	if err := oneOf("notifier_driver", c.NotifierDriver, notifierDrivers); err != nil {
		return err
	}

	required := map[string]string{}
	switch c.StoreDriver {
	case DriverPostgres:
		required["postgres_dsn"] = c.PostgresDSN
	case DriverDynamo:
		required["dynamo_attempts_table"] = c.DynamoAttemptsTable
		required["dynamo_athletes_table"] = c.DynamoAthletesTable
		required["aws_region"] = c.AWSRegion
	}
	switch c.ObjectStoreDriver {
	case DriverMinio:
		required["minio_endpoint"] = c.MinioEndpoint
		required["bucket"] = c.Bucket
	case DriverS3:
		required["bucket"] = c.Bucket
		required["aws_region"] = c.AWSRegion
	}
	switch c.NotifierDriver {
	case DriverHTTP:
		required["analysis_url"] = c.AnalysisURL
	case DriverKafka:
		required["kafka_brokers"] = c.KafkaBrokers
		required["analysis_topic"] = c.AnalysisTopic
	case DriverSQS:
		required["sqs_queue_url"] = c.SQSQueueURL
		required["aws_region"] = c.AWSRegion
	}
	if c.ResultsTopic != "" {
		required["kafka_brokers"] = c.KafkaBrokers
		required["results_group"] = c.ResultsGroup
	}

	keys := make([]string, 0, len(required))
	for k := range required {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if strings.TrimSpace(required[k]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, k)
		}
	}
	return nil
}

func oneOf(key, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidConfig, key, strings.Join(allowed, "|"), value)
}
