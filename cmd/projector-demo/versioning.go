package main

import (
	"context"

	"github.com/akriventsev/projector/projection"
)

// versionTransitioned — единственное событие проекции version-manager,
// локальное для демо-процесса: ядро не поставляет версионера готовым,
// каждый потребитель заводит свой (см. версионер в тестах пакета projection).
type versionTransitioned struct {
	Name     projection.Name   `json:"name"`
	Status   projection.Status `json:"status"`
	Revision int64             `json:"revision"`
}

func (*versionTransitioned) EventType() string { return "version.transitioned" }

// versionManagerDefinition — Definition самоописывающей проекции о версиях
// пользовательских проекций, читаемой VersionResolver на собственной,
// зафиксированной при старте версии.
func versionManagerDefinition() projection.Definition {
	return projection.Definition{
		Name:      "version-manager",
		Snapshots: false,
		Zero:      func() any { return projection.Versions{} },
		Fold: func(state any, event projection.Event) (any, error) {
			versions, _ := state.(projection.Versions)
			e := event.(*versionTransitioned)
			v := projection.Version{Name: e.Name, Status: e.Status, Revision: e.Revision}
			switch e.Status {
			case projection.StatusLive:
				versions.Live = &v
			case projection.StatusBuilding:
				versions.Building = append(versions.Building, v)
			}
			return versions, nil
		},
		MapEvent: func(event projection.Event) ([]string, error) {
			return nil, nil
		},
	}
}

// versionManagerSelfVersion — единственная, фиксированная версия самой
// проекции version-manager; она не резолвится через себя (цикл), поэтому
// достаточно ревизии 1 навечно.
func versionManagerSelfVersion() projection.Version {
	return projection.Version{Name: "version-manager", Status: projection.StatusLive, Revision: 1}
}

// seedLiveVersion публикует один коммит "widgets стала Live на revision 1" в
// журнал version-manager'а, чтобы у Repository.Save/Get было что резолвить
// при первом запуске демо-процесса.
func seedLiveVersion(ctx context.Context, store projection.Store, tenant string, name projection.Name, revision int64) error {
	id := tenant + "/" + string(name)
	return store.Save(ctx, projection.Commit{
		ProjectionID:   id,
		Version:        versionManagerSelfVersion(),
		Event:          &versionTransitioned{Name: name, Status: projection.StatusLive, Revision: revision},
		SnapshotMarker: 0,
	})
}
