package projectionstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/projector/projection"
)

type widgetCreated struct {
	WidgetID string `json:"widgetId"`
	Name     string `json:"name"`
}

func newWidgetCreated() projection.Event { return &widgetCreated{} }

type widgetRenamed struct {
	WidgetID string `json:"widgetId"`
	NewName  string `json:"newName"`
}

func newWidgetRenamed() projection.Event { return &widgetRenamed{} }

func TestJSONEventCodec_RoundtripsRegisteredType(t *testing.T) {
	codec := NewJSONEventCodec(map[string]EventFactory{
		"widget.created": newWidgetCreated,
	})

	eventType, data, err := codec.Encode(&widgetCreated{WidgetID: "w-1", Name: "gadget"})
	require.NoError(t, err)
	assert.Equal(t, "widget.created", eventType)

	decoded, err := codec.Decode(eventType, data)
	require.NoError(t, err)
	got, ok := decoded.(*widgetCreated)
	require.True(t, ok)
	assert.Equal(t, "w-1", got.WidgetID)
	assert.Equal(t, "gadget", got.Name)
}

func TestJSONEventCodec_DistinguishesMultipleTypes(t *testing.T) {
	codec := NewJSONEventCodec(map[string]EventFactory{
		"widget.created": newWidgetCreated,
		"widget.renamed": newWidgetRenamed,
	})

	eventType, data, err := codec.Encode(&widgetRenamed{WidgetID: "w-1", NewName: "sprocket"})
	require.NoError(t, err)
	assert.Equal(t, "widget.renamed", eventType)

	decoded, err := codec.Decode(eventType, data)
	require.NoError(t, err)
	got, ok := decoded.(*widgetRenamed)
	require.True(t, ok)
	assert.Equal(t, "sprocket", got.NewName)
}

func TestJSONEventCodec_EncodeUnregisteredTypeFails(t *testing.T) {
	codec := NewJSONEventCodec(nil)
	_, _, err := codec.Encode(&widgetCreated{})
	assert.Error(t, err)
}

func TestJSONEventCodec_DecodeUnregisteredTypeFails(t *testing.T) {
	codec := NewJSONEventCodec(nil)
	_, err := codec.Decode("widget.created", []byte(`{}`))
	assert.Error(t, err)
}

func TestJSONEventCodec_RegisterOverridesExisting(t *testing.T) {
	calls := 0
	codec := NewJSONEventCodec(map[string]EventFactory{"widget.created": newWidgetCreated})
	codec.Register("widget.created", func() projection.Event {
		calls++
		return &widgetCreated{}
	})

	_, err := codec.Decode("widget.created", []byte(`{"widgetId":"w-2"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
