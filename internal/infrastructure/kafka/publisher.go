package kafka

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/infrastructure/config"
	"github.com/rs/zerolog"
)

// Publisher sends payment events to a Kafka topic, keyed by aggregate id
// so the broker preserves per-aggregate ordering within a partition.
type Publisher struct {
	logger   zerolog.Logger
	producer *kafka.Producer
	topic    string
}

// NewPublisher creates an idempotent acks=all Kafka producer.
func NewPublisher(logger zerolog.Logger, cfg *config.KafkaConfig) (*Publisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               "all",
		"retries":            3,
		"linger.ms":          10,
		"enable.idempotence": true,
		"compression.type":   "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Publisher{
		logger:   logger,
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// Publish produces one message and waits for the broker's delivery
// report, so the caller only marks an outbox entry delivered after the
// bus has acknowledged it.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, deliveryChan); err != nil {
		return errs.Wrap(errs.KindPublishFailure, "enqueue kafka message", err)
	}

	select {
	case <-ctx.Done():
		return errs.Wrap(errs.KindPublishFailure, "await kafka delivery", ctx.Err())
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errs.Newf(errs.KindPublishFailure, "unexpected kafka event %T", e)
		}
		if m.TopicPartition.Error != nil {
			return errs.Wrap(errs.KindPublishFailure, "kafka delivery failed", m.TopicPartition.Error)
		}
	}

	p.logger.Debug().Str("key", key).Str("topic", p.topic).Msg("Published event")
	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (p *Publisher) Close() {
	p.producer.Flush(15 * 1000)
	p.producer.Close()
}
