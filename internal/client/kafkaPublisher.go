package client

import (
	"context"
	"encoding/json"
	"fmt"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"

	"github.com/IBM/sarama"
)

type EventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event *model.OrderStatusEvent) error
	Close() error
}

type kafkaPublisherImpl struct {
	producer sarama.SyncProducer
	topic    string
}

// NewEventPublisher returns a Kafka publisher, or a no-op one when no brokers
// are configured.
func NewEventPublisher(cfg *config.Kafka) (EventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return NoopPublisher{}, nil
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return NewKafkaPublisher(producer, cfg.OrderTopic), nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) EventPublisher {
	return &kafkaPublisherImpl{
		producer: producer,
		topic:    topic,
	}
}

func (p *kafkaPublisherImpl) PublishOrderStatusChanged(ctx context.Context, event *model.OrderStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order status event: %w", err)
	}

	// keyed by order so one order's events stay on one partition, in order
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s message: %w", p.topic, err)
	}
	return nil
}

func (p *kafkaPublisherImpl) Close() error {
	return p.producer.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) PublishOrderStatusChanged(context.Context, *model.OrderStatusEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
