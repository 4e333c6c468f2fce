package projectionstore

import (
	"encoding/json"
	"fmt"

	"github.com/akriventsev/projector/projection"
)

// EventFactory создает пустое значение конкретного типа события для JSON-
// десериализации. Обобщение EventDeserializer из фреймворка
// (framework/eventsourcing/event_store.go), где дискриминатор типа события
// разрешается в конкретную Go-структуру до Unmarshal.
type EventFactory func() projection.Event

// JSONEventCodec — EventCodec на голом encoding/json с реестром типов событий
// по имени. Подходящее решение по умолчанию: в ядре Event — неизвестный
// внешнему пакету интерфейс (Non-goal §1), а домену достаточно единообразного
// текстового формата для хранения рядом с остальными метаданными коммита.
type JSONEventCodec struct {
	factories map[string]EventFactory
	typeNames map[string]string
}

// NewJSONEventCodec создает кодек с заданным реестром {имя типа -> фабрика}.
func NewJSONEventCodec(factories map[string]EventFactory) *JSONEventCodec {
	c := &JSONEventCodec{
		factories: make(map[string]EventFactory, len(factories)),
		typeNames: make(map[string]string, len(factories)),
	}
	for name, factory := range factories {
		c.Register(name, factory)
	}
	return c
}

// Register добавляет или переопределяет соответствие имени типа и фабрики.
func (c *JSONEventCodec) Register(eventType string, factory EventFactory) {
	c.factories[eventType] = factory
	sample := factory()
	c.typeNames[fmt.Sprintf("%T", sample)] = eventType
}

func (c *JSONEventCodec) Encode(event projection.Event) (string, []byte, error) {
	eventType, ok := c.typeNames[fmt.Sprintf("%T", event)]
	if !ok {
		return "", nil, fmt.Errorf("no registered event type name for %T", event)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling event %s: %w", eventType, err)
	}
	return eventType, data, nil
}

func (c *JSONEventCodec) Decode(eventType string, data []byte) (projection.Event, error) {
	factory, ok := c.factories[eventType]
	if !ok {
		return nil, fmt.Errorf("no registered factory for event type %s", eventType)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("unmarshaling event %s: %w", eventType, err)
	}
	return event, nil
}
