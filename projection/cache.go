package projection

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheRefreshInterval — порог устаревания кеша версий (SPEC_FULL §4.3/§4.4).
const DefaultCacheRefreshInterval = 5 * time.Minute

// VersionCache (C6) — карта projectionName → Versions с политикой
// "обновить после 5 минут". Данные и их свежесть хранятся раздельно:
// versions — обычная карта, которая никогда не вытесняется сама по себе
// (стале-чтения предпочтительнее недоступности, SPEC_FULL §4.4 п.5), а
// freshness — LRU с TTL, чье единственное назначение — отвечать на вопрос
// "прошло ли 5 минут с последнего успешного обновления этого имени". У
// источника это один процесс-глобальный lastRefreshTimestamp (SPEC_FULL §9);
// здесь выбор сужен до TTL на одну запись — per-name вместо process-wide,
// решение, которое design note оставляет реализации, зафиксировано в
// DESIGN.md.
type VersionCache struct {
	mu        sync.RWMutex
	versions  map[Name]Versions
	freshness *expirable.LRU[Name, struct{}]
}

// NewVersionCache создает кеш с заданным TTL (0 → DefaultCacheRefreshInterval).
func NewVersionCache(ttl time.Duration) *VersionCache {
	if ttl <= 0 {
		ttl = DefaultCacheRefreshInterval
	}
	return &VersionCache{
		versions:  make(map[Name]Versions),
		freshness: expirable.NewLRU[Name, struct{}](4096, nil, ttl),
	}
}

// Get возвращает данные для имени (если когда-либо кешировались) и
// признак, свежи ли они (false означает "нужен рефреш", но значение все
// равно может быть использовано вызывающей стороной как стале-фоллбек).
func (c *VersionCache) Get(name Name) (Versions, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	versions, present := c.versions[name]
	if !present {
		return Versions{}, false
	}
	_, fresh := c.freshness.Peek(name)
	return versions, fresh
}

// CacheAll заменяет набор версий для имени одним снимком и отмечает его
// свежим — вызывается после успешного рефреша через version-manager.
func (c *VersionCache) CacheAll(versions Versions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[versions.Name] = versions
	c.freshness.Add(versions.Name, struct{}{})
}

// Cache обновляет (upsert) одну версию внутри набора для её имени, сохраняя
// инвариант "максимум одна Live", и отмечает запись свежей.
func (c *VersionCache) Cache(version Version) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.versions[version.Name]
	existing.Name = version.Name

	switch version.Status {
	case StatusLive:
		v := version
		existing.Live = &v
	case StatusBuilding:
		replaced := false
		for i := range existing.Building {
			if existing.Building[i].Revision == version.Revision {
				existing.Building[i] = version
				replaced = true
				break
			}
		}
		if !replaced {
			existing.Building = append(existing.Building, version)
		}
	default:
		// Canceled/Timedout/New больше не активны — убираем их из набора,
		// если они там были.
		if existing.Live != nil && existing.Live.Revision == version.Revision {
			existing.Live = nil
		}
		filtered := existing.Building[:0]
		for _, b := range existing.Building {
			if b.Revision != version.Revision {
				filtered = append(filtered, b)
			}
		}
		existing.Building = filtered
	}

	c.versions[version.Name] = existing
	c.freshness.Add(version.Name, struct{}{})
}
