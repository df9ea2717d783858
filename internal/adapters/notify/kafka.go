package notify

import (
	"context"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// Kafka publishes the message to a topic keyed by attempt id.
type Kafka struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafka creates a producer for topic on the given brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
	}
	return newKafka(w), nil
}

func newKafka(w messageWriter) *Kafka {
	return &Kafka{writer: w, timeout: 3 * time.Second}
}

func (k *Kafka) Notify(ctx context.Context, msg Message) error {
	b, err := msg.encode()
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(msg.AttemptID),
		Value: b,
		Time:  time.Now(),
	})
}

func (k *Kafka) Close() error { return k.writer.Close() }
