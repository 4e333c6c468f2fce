package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig конфигурация подключения к Redis Streams.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	StreamMaxLen  int64
	ConsumerGroup string
	BlockTimeout  time.Duration
}

// DefaultRedisConfig — конфигурация по умолчанию.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		StreamMaxLen:  10000,
		ConsumerGroup: "projector",
		BlockTimeout:  5 * time.Second,
	}
}

// RedisBroker — Broker поверх Redis Streams (XADD/XREADGROUP).
type RedisBroker struct {
	config RedisConfig
	client *redis.Client
}

// NewRedisBroker подключается к Redis и возвращает готовый брокер.
func NewRedisBroker(config RedisConfig) (*RedisBroker, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}
	client := redis.NewClient(&redis.Options{Addr: config.Addr, Password: config.Password, DB: config.DB})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBroker{config: config, client: client}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	values := map[string]interface{}{"data": string(data)}
	if len(headers) > 0 {
		headersJSON, err := json.Marshal(headers)
		if err != nil {
			return fmt.Errorf("marshal headers: %w", err)
		}
		values["headers"] = string(headersJSON)
	}

	args := redis.XAddArgs{Stream: subject, Values: values}
	if b.config.StreamMaxLen > 0 {
		args.MaxLen = b.config.StreamMaxLen
		args.Approx = true
	}
	if _, err := b.client.XAdd(ctx, &args).Result(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, subject string, handler Handler) error {
	err := b.client.XGroupCreateMkStream(ctx, subject, b.config.ConsumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	consumer := fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    b.config.ConsumerGroup,
				Consumer: consumer,
				Streams:  []string{subject, ">"},
				Count:    10,
				Block:    b.config.BlockTimeout,
			}).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				time.Sleep(time.Second)
				continue
			}

			for _, s := range streams {
				for _, msg := range s.Messages {
					headers := make(map[string]string)
					if raw, ok := msg.Values["headers"].(string); ok {
						_ = json.Unmarshal([]byte(raw), &headers)
					}
					data, _ := msg.Values["data"].(string)
					if err := handler(ctx, Message{Subject: subject, Data: []byte(data), Headers: headers}); err == nil {
						b.client.XAck(ctx, subject, b.config.ConsumerGroup, msg.ID)
					}
				}
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
