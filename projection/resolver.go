package projection

import (
	"context"
	"fmt"
)

// VersionManagerID computes the version-manager projection's own id from a
// tenant scope and the target projection's name: (projectionName, tenant).
type VersionManagerID func(name Name, tenant string) string

// VersionResolver (C7) возвращает текущий Versions для имени, падая на
// перечитывание event-sourced version-manager проекции (проекции о
// проекциях), когда кеш устарел или пуст. Рефреш идет через тот же Loader,
// что обслуживает пользовательские проекции — C5/C4/C3 в обе стороны.
type VersionResolver struct {
	cache            *VersionCache
	loader           *Loader
	versionManager   Definition
	versionManagerID VersionManagerID
	// selfVersion — версия самой проекции version-manager. Она не проходит
	// через резолвер (это было бы циклично); version-manager всегда читается
	// на своей единственной, зафиксированной при старте Live-версии.
	selfVersion Version
}

// NewVersionResolver создает резолвер версий.
func NewVersionResolver(cache *VersionCache, loader *Loader, versionManager Definition, selfVersion Version, id VersionManagerID) *VersionResolver {
	if id == nil {
		id = func(name Name, tenant string) string { return fmt.Sprintf("%s/%s", tenant, name) }
	}
	return &VersionResolver{
		cache:            cache,
		loader:           loader,
		versionManager:   versionManager,
		versionManagerID: id,
		selfVersion:      selfVersion,
	}
}

// GetProjectionVersions реализует SPEC_FULL §4.4: кеш-хит без обращения к
// стору; на устаревшем, отсутствующем или пустом кеше — перечитывание
// version-manager, с сохранением старых данных при неудаче рефреша.
func (r *VersionResolver) GetProjectionVersions(ctx context.Context, name Name, tenant string) (Versions, error) {
	versions, fresh := r.cache.Get(name)
	if fresh && !versions.IsEmpty() {
		return versions, nil
	}

	refreshed, err := r.refresh(ctx, name, tenant)
	if err != nil {
		if !versions.IsEmpty() {
			// Стале-чтение предпочтительнее недоступности; кеш не инвалидируется.
			return versions, nil
		}
		return Versions{}, VersionResolutionFailed(err)
	}
	return refreshed, nil
}

func (r *VersionResolver) refresh(ctx context.Context, name Name, tenant string) (Versions, error) {
	id := r.versionManagerID(name, tenant)

	stream, err := r.loader.Reconstruct(ctx, r.selfVersion, id, r.versionManager)
	if err != nil {
		return Versions{}, fmt.Errorf("replaying version manager for %s: %w", name, err)
	}

	state, err := stream.RestoreFromHistory(r.versionManager)
	if err != nil {
		return Versions{}, fmt.Errorf("folding version manager state for %s: %w", name, err)
	}

	versions, ok := state.(Versions)
	if !ok {
		return Versions{}, fmt.Errorf("version manager projection returned unexpected type %T", state)
	}
	versions.Name = name

	r.cache.CacheAll(versions)
	return versions, nil
}
