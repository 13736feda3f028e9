package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/config"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer writes keyed records to the order events topic.
type Producer struct {
	client *kgo.Client
	topic  string
	log    observability.Logger
}

func NewProducer(cfg config.KafkaConfig, logger observability.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.With(observability.F("component", "kafka_producer"), observability.F("topic", cfg.OrderTopic))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.OrderTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka_producer_created", observability.F("brokers", cfg.Brokers))
	return &Producer{client: client, topic: cfg.OrderTopic, log: logger}, nil
}

// Produce sends one record and waits for the broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, key string, value []byte, headers map[string]string) error {
	if len(value) == 0 {
		return fmt.Errorf("payload is empty")
	}
	rec := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(key),
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
	for k, v := range headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		p.log.Warn("kafka_produce_failed",
			observability.F("key", key),
			observability.F("bytes", len(value)),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("publish to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
	p.log.Info("kafka_producer_closed")
}
