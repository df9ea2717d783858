package intake

import (
	"context"
	"errors"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

const (
	defaultRetryDelay = 200 * time.Millisecond
	commitTimeout     = 3 * time.Second
)

// Sink accepts decoded results. duplicate reports an already seen message.
type Sink interface {
	EnqueueResult(ctx context.Context, m queue.Message) (duplicate bool, err error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaConsumer reads worker results from a topic and commits each offset
// only after the sink accepted the message.
type KafkaConsumer struct {
	reader     messageReader
	sink       Sink
	retryDelay time.Duration
	logger     logger.Logger
}

// Option configures a KafkaConsumer.
type Option func(*KafkaConsumer)

// WithRetryDelay sets the wait between attempts while the sink is full.
func WithRetryDelay(d time.Duration) Option {
	return func(c *KafkaConsumer) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithLogger sets the consumer's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *KafkaConsumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewKafkaConsumer joins groupID on topic.
func NewKafkaConsumer(brokers []string, topic, groupID string, sink Sink, opts ...Option) *KafkaConsumer {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return newKafkaConsumer(r, sink, opts...)
}

func newKafkaConsumer(r messageReader, sink Sink, opts ...Option) *KafkaConsumer {
	c := &KafkaConsumer{reader: r, sink: sink, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("intake")
	}
	return c
}

// Run consumes until ctx ends. It returns nil on cancellation and the sink
// error when the sink stops accepting for good.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error(ctx, "fetch failed", logger.Error(err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}
		if err := c.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, km kgo.Message) error { //nolint:gocritic // hugeParam: kafka message by value
	env, err := Decode(km.Value)
	var msg queue.Message
	if err == nil {
		msg, err = env.Message(string(km.Key))
	}
	if err != nil {
		metrics.RecordIntakeMessage("invalid")
		c.logger.Warn(ctx, "dropping invalid result message",
			logger.Int("partition", km.Partition),
			logger.Any("offset", km.Offset),
			logger.Error(err),
		)
		return c.commit(ctx, km)
	}

	for {
		dup, err := c.sink.EnqueueResult(ctx, msg)
		switch {
		case err == nil && dup:
			metrics.RecordIntakeMessage("duplicate")
			return c.commit(ctx, km)
		case err == nil:
			metrics.RecordIntakeMessage("enqueued")
			return c.commit(ctx, km)
		case errors.Is(err, queue.ErrFull):
			metrics.RecordIntakeMessage("backpressure")
			if !c.sleep(ctx) {
				return ctx.Err()
			}
		default:
			return err
		}
	}
}

func (c *KafkaConsumer) commit(ctx context.Context, km kgo.Message) error { //nolint:gocritic // hugeParam: kafka message by value
	cctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()
	if err := c.reader.CommitMessages(cctx, km); err != nil {
		c.logger.Error(ctx, "commit failed", logger.Any("offset", km.Offset), logger.Error(err))
	}
	return nil
}

func (c *KafkaConsumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close leaves the consumer group.
func (c *KafkaConsumer) Close() error { return c.reader.Close() }
