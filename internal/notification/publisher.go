package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher hands events to the external delivery pipeline.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Topic the external delivery service consumes.
const Topic = "scheme.notifications"

// KafkaPublisher produces notification events to Kafka. Records are keyed by
// source ID so all audiences of one source land in the same partition.
type KafkaPublisher struct {
	client *kgo.Client
}

// NewKafkaPublisher connects to the given brokers.
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(ev.SourceID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

// NoopPublisher drops events. Used in standalone mode when no brokers are
// configured; the event store remains the source of truth.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
