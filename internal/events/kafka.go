package events

import (
	"context"

	"stayledger/pkg/kafka"
	kafka_config "stayledger/pkg/kafka/config"
	"stayledger/pkg/logger"
)

// KafkaPublisher publishes events through the shared Kafka producer, keyed so
// all events of one booking/calendar land on one partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	service  string
	log      *logger.Logger
}

func NewKafkaPublisher(cfg *kafka_config.Config, service string, log *logger.Logger) (*KafkaPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(cfg, cfg.Topic, cfg.DLQ)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{producer: producer, service: service, log: log}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, key string, payload any) error {
	msg := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithEventID("").
		WithSource(p.service).
		WithSchemaVersion("1").
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish event",
			"event_type", eventType,
			"key", key,
			"error", err,
		)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
