package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// DefaultTopic is the Kafka topic receipts are produced to.
const DefaultTopic = "trumpproof.receipts"

// KafkaSink produces each receipt synchronously, keyed by receipt type so
// one type stays ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
}

// NewKafkaSink connects to the seed brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: %w", err)
	}
	return &KafkaSink{client: client}, nil
}

func (s *KafkaSink) Write(ctx context.Context, r *receipts.Receipt) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("kafka sink encode: %w", err)
	}
	rec := &kgo.Record{Key: []byte(r.Type), Value: body}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka sink produce: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
