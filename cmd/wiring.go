package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/okian/trials/internal/adapters/notify"
	"github.com/okian/trials/internal/adapters/objectstore"
	"github.com/okian/trials/internal/adapters/repository"
	app "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/config"
	"github.com/okian/trials/pkg/logger"
)

// adapters are the external systems selected by configuration.
type adapters struct {
	store        repository.Store
	objects      objectstore.Store
	notifier     notify.Notifier
	notifierName string
}

// buildAdapters connects the configured store, object store and notifier.
func buildAdapters(ctx context.Context, cfg *config.Config) (*adapters, error) {
	var (
		a      = &adapters{notifierName: cfg.NotifierDriver}
		awsCfg *aws.Config
	)
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
		if cfg.AWSEndpoint != "" {
			opts = append(opts, awsconfig.WithBaseEndpoint(cfg.AWSEndpoint))
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := repository.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store, err := repository.NewGormStore(ctx, db)
		if err != nil {
			return nil, err
		}
		a.store = store
	case config.DriverDynamo:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		a.store = repository.NewDynamoStore(dynamodb.NewFromConfig(c),
			repository.WithAttemptsTable(cfg.DynamoAttemptsTable),
			repository.WithAthletesTable(cfg.DynamoAthletesTable),
		)
	default:
		a.store = repository.NewMemoryStore()
	}

	switch cfg.ObjectStoreDriver {
	case config.DriverMinio:
		m, err := objectstore.NewMinio(objectstore.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Secure:        cfg.MinioSecure,
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		a.objects = m
	case config.DriverS3:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(c, func(o *s3.Options) {
			// Emulators such as localstack only serve path-style buckets.
			o.UsePathStyle = cfg.AWSEndpoint != ""
		})
		a.objects = objectstore.NewS3(client, cfg.Bucket, cfg.AWSRegion, cfg.PublicBaseURL)
	default:
		a.objects = objectstore.NewMemory(cfg.PublicBaseURL)
	}

	switch cfg.NotifierDriver {
	case config.DriverHTTP:
		a.notifier = notify.NewHTTP(cfg.AnalysisURL, notify.WithTimeout(cfg.NotifyTimeout()))
	case config.DriverKafka:
		k, err := notify.NewKafka(notify.SplitBrokers(cfg.KafkaBrokers), cfg.AnalysisTopic)
		if err != nil {
			return nil, err
		}
		a.notifier = k
	case config.DriverSQS:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		a.notifier = notify.NewSQS(sqs.NewFromConfig(c), cfg.SQSQueueURL)
	default:
		a.notifier = notify.Nop{}
		a.notifierName = config.DriverNone
	}
	return a, nil
}

// newService builds the service on the configured adapters.
func newService(cfg *config.Config, a *adapters, log logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(log),
		app.WithStore(a.store),
		app.WithObjectStore(a.objects),
		app.WithNotifier(a.notifier, a.notifierName),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.ResultQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxVideoBytes(cfg.MaxVideoBytes),
		app.WithCommitRetries(cfg.CommitRetries),
		app.WithNotifyTimeout(cfg.NotifyTimeout()),
		app.WithMaxListLimit(cfg.MaxListLimit),
	)
}
