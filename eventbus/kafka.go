package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig конфигурация подключения к Kafka.
type KafkaConfig struct {
	Brokers []string
	GroupID string
	MinBytes,
	MaxBytes int
	MaxWait time.Duration
}

// DefaultKafkaConfig — конфигурация по умолчанию.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:  []string{"localhost:9092"},
		GroupID:  "projector",
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	}
}

// KafkaBroker — Broker поверх segmentio/kafka-go, с commit-offset только
// после успешной обработки сообщения обработчиком.
type KafkaBroker struct {
	config  KafkaConfig
	writer  *kafka.Writer
	mu      sync.Mutex
	readers map[string]*kafka.Reader
}

// NewKafkaBroker создает брокер поверх набора брокеров Kafka.
func NewKafkaBroker(config KafkaConfig) (*KafkaBroker, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	return &KafkaBroker{
		config:  config,
		writer:  &kafka.Writer{Addr: kafka.TCP(config.Brokers...), Balancer: &kafka.LeastBytes{}},
		readers: make(map[string]*kafka.Reader),
	}, nil
}

func (b *KafkaBroker) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	msg := kafka.Message{Topic: subject, Value: data}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (b *KafkaBroker) Subscribe(ctx context.Context, subject string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.config.Brokers,
		Topic:    subject,
		GroupID:  b.config.GroupID,
		MinBytes: b.config.MinBytes,
		MaxBytes: b.config.MaxBytes,
		MaxWait:  b.config.MaxWait,
	})

	b.mu.Lock()
	b.readers[subject] = reader
	b.mu.Unlock()

	go func() {
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				return // ctx canceled or reader closed
			}

			headers := make(map[string]string, len(msg.Headers))
			for _, h := range msg.Headers {
				headers[h.Key] = string(h.Value)
			}

			if err := handler(ctx, Message{Subject: msg.Topic, Data: msg.Value, Headers: headers}); err == nil {
				_ = reader.CommitMessages(ctx, msg)
			}
		}
	}()
	return nil
}

func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	for _, reader := range b.readers {
		_ = reader.Close()
	}
	b.mu.Unlock()
	return b.writer.Close()
}
