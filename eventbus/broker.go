// Package eventbus содержит брокеры доставки событий к Dispatcher, который
// питает Repository.Save — внешний транспорт для fan-out записи проекций
// (SPEC_FULL §6, messagebus wiring). Форма контракта обобщает
// transport.MessageBus фреймворка (framework/transport/messagebus.go) под
// нужды одной операции "доставить событие до репозитория проекций".
package eventbus

import "context"

// Message — единица доставки: событие плюс метаданные транспорта.
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// Handler обрабатывает одно доставленное сообщение.
type Handler func(ctx context.Context, msg Message) error

// Broker — минимальный контракт publish/subscribe, общий для NATS, Kafka и
// Redis Streams адаптеров.
type Broker interface {
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
	Subscribe(ctx context.Context, subject string, handler Handler) error
	Close() error
}
