package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
)

// KafkaDispatcher publishes events to a Kafka topic, one message per event,
// keyed by tracking identifier so a delivery's events stay ordered.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaDispatcher creates a new KafkaDispatcher. It returns (nil, nil)
// when brokers or topic are not configured; a nil dispatcher is a no-op.
func NewKafkaDispatcher(brokers []string, topic string) (*KafkaDispatcher, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return &KafkaDispatcher{producer: producer, topic: topic}, nil
}

// Dispatch publishes the event.
func (d *KafkaDispatcher) Dispatch(_ context.Context, e Event) error {
	if d == nil {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, _, err = d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(e.TrackingID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.producer.Close()
}
