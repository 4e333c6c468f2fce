package main

import (
	"encoding/json"
	"fmt"

	"github.com/akriventsev/projector/projection"
)

// widgetCreated и widgetRenamed — демонстрационные доменные события, внешние
// по отношению к ядру (Non-goal §1: определения событий остаются снаружи
// пакета projection).
type widgetCreated struct {
	WidgetID string `json:"widgetId"`
	Name     string `json:"name"`
}

func (*widgetCreated) EventType() string { return "widget.created" }

type widgetRenamed struct {
	WidgetID string `json:"widgetId"`
	NewName  string `json:"newName"`
}

func (*widgetRenamed) EventType() string { return "widget.renamed" }

// widgetState — состояние одной проекции widgets.
type widgetState struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// widgetProjection — контракт-id тип, передаваемый в Repository.Save/Get;
// само по себе пусто, служит только ключом для ContractIdResolver (C1).
type widgetProjection struct{}

func widgetsDefinition() projection.Definition {
	return projection.Definition{
		Name:      "widgets",
		Snapshots: true,
		Zero:      func() any { return widgetState{} },
		Fold: func(state any, event projection.Event) (any, error) {
			s, _ := state.(widgetState)
			switch e := event.(type) {
			case *widgetCreated:
				s.ID = e.WidgetID
				s.Name = e.Name
				s.Version++
			case *widgetRenamed:
				s.Name = e.NewName
				s.Version++
			default:
				return s, fmt.Errorf("widgets projection cannot fold event type %T", event)
			}
			return s, nil
		},
		Serialize: func(state any) ([]byte, error) {
			return json.Marshal(state)
		},
		Deserialize: func(data []byte) (any, error) {
			var s widgetState
			if err := json.Unmarshal(data, &s); err != nil {
				return nil, err
			}
			return s, nil
		},
		MapEvent: func(event projection.Event) ([]string, error) {
			switch e := event.(type) {
			case *widgetCreated:
				return []string{e.WidgetID}, nil
			case *widgetRenamed:
				return []string{e.WidgetID}, nil
			default:
				return nil, fmt.Errorf("widgets projection cannot map event type %T", event)
			}
		},
	}
}
