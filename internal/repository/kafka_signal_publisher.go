package repository

import (
	"context"
	"fmt"
	"strconv"

	"SigRelay/internal/domain/models"
	pkgkafka "SigRelay/pkg/kafka"
)

// KafkaSignalPublisher implements SignalPublisher over a Kafka topic.
// Signals are keyed by channel id so one channel's signals stay ordered
// within a partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s models.Signal) error {
	key := []byte(strconv.FormatInt(s.ChannelID, 10))
	if err := p.producer.Publish(ctx, p.topic, key, s); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}
