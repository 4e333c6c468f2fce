package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig конфигурация подключения к NATS.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	DrainTimeout  time.Duration
}

// DefaultNATSConfig — конфигурация по умолчанию.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		DrainTimeout:  30 * time.Second,
	}
}

// NATSBroker — Broker поверх NATS core pub/sub.
type NATSBroker struct {
	config NATSConfig
	conn   *nats.Conn
	mu     sync.Mutex
	subs   map[string]*nats.Subscription
}

// NewNATSBroker подключается к NATS и возвращает готовый брокер.
func NewNATSBroker(config NATSConfig) (*NATSBroker, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(config.URL, "nats://") && !strings.HasPrefix(config.URL, "tls://") {
		return nil, fmt.Errorf("URL must start with nats:// or tls://")
	}

	conn, err := nats.Connect(config.URL,
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSBroker{config: config, conn: conn, subs: make(map[string]*nats.Subscription)}, nil
}

func (b *NATSBroker) Publish(_ context.Context, subject string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if len(headers) > 0 {
		msg.Header = make(nats.Header)
		for k, v := range headers {
			msg.Header.Set(k, v)
		}
	}
	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBroker) Subscribe(ctx context.Context, subject string, handler Handler) error {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		headers := make(map[string]string, len(msg.Header))
		for k, vals := range msg.Header {
			if len(vals) > 0 {
				headers[k] = vals[0]
			}
		}
		_ = handler(ctx, Message{Subject: msg.Subject, Data: msg.Data, Headers: headers})
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs[subject] = sub
	b.mu.Unlock()
	return nil
}

func (b *NATSBroker) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.mu.Unlock()

	if b.conn.IsConnected() {
		_ = b.conn.FlushTimeout(b.config.DrainTimeout)
		_ = b.conn.Drain()
	}
	b.conn.Close()
	return nil
}
