package projection

import (
	"context"
	"fmt"
	"time"
)

// Result — исход одной независимой операции в fan-out записи: либо коммит
// ушел в (projectionId, version), либо эта одна версия провалилась без
// влияния на остальные (SPEC_FULL §4.5, "per-version failures are isolated").
type Result struct {
	Version Version
	Err     error
}

// Repository (C8) — верхнеуровневый фасад: Save (fan-out/targeted), Get
// (синхронный и асинхронный), с циклом реконструкции и чекпоинтингом.
// Собирает вместе C1 (ContractIDResolver), C2 (через Loader), C3/C4 (через
// Loader и Store/SnapshotStore напрямую для записи), C5 (Stream), C6/C7
// (VersionCache/VersionResolver) и реестр фолдеров.
type Repository struct {
	store      Store
	snapshots  SnapshotStore
	resolver   *VersionResolver
	loader     *Loader
	registry   *FolderRegistry
	contractID *ContractIDResolver
	logger     Logger
	tracer     Tracer
	clock      func() time.Time
}

// RepositoryOption настраивает Repository при создании.
type RepositoryOption func(*Repository)

// WithLogger переопределяет логгер (по умолчанию NopLogger).
func WithLogger(logger Logger) RepositoryOption {
	return func(r *Repository) { r.logger = logger }
}

// WithClock переопределяет источник времени, используемый для PersistedAt
// (по умолчанию time.Now); полезно в тестах для детерминизма.
func WithClock(clock func() time.Time) RepositoryOption {
	return func(r *Repository) { r.clock = clock }
}

// WithTracer подключает трейсинг операций Save/Get (по умолчанию NopTracer).
// Внешняя зависимость (Non-goal §1): ядро вызывает Tracer через интерфейс,
// не импортируя конкретный пакет инструментации.
func WithTracer(tracer Tracer) RepositoryOption {
	return func(r *Repository) { r.tracer = tracer }
}

// NewRepository собирает C8 из его коллабораторов.
func NewRepository(
	store Store,
	snapshots SnapshotStore,
	resolver *VersionResolver,
	loader *Loader,
	registry *FolderRegistry,
	contractID *ContractIDResolver,
	opts ...RepositoryOption,
) *Repository {
	r := &Repository{
		store:      store,
		snapshots:  snapshots,
		resolver:   resolver,
		loader:     loader,
		registry:   registry,
		contractID: contractID,
		logger:     NopLogger{},
		tracer:     NopTracer{},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save — fan-out запись (SPEC_FULL §4.5): резолвит затронутые id события,
// для каждого резолвит версии и независимо пишет в каждую Building/Live
// версию. Используется диспетчером сообщений.
func (r *Repository) Save(ctx context.Context, tenant string, projectionType any, event Event, origin Origin) ([]Result, error) {
	if event == nil {
		return nil, InvalidArgument("event must not be nil")
	}

	name := r.contractID.Resolve(projectionType)
	def, ok := r.registry.Get(name)
	if !ok {
		return nil, InvalidArgument(fmt.Sprintf("projection %s is not registered", name))
	}

	ids, err := r.registry.GetProjectionIDs(name, event)
	if err != nil {
		return nil, InvalidArgument(fmt.Sprintf("failed to map event to projection ids: %v", err))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var results []Result
	for _, id := range ids {
		var versions Versions
		err := r.tracer.TraceResolve(ctx, string(name), func(ctx context.Context) error {
			v, err := r.resolver.GetProjectionVersions(ctx, name, tenant)
			versions = v
			return err
		})
		if err != nil {
			return results, err
		}
		for _, version := range versions.Writable() {
			res := Result{Version: version}
			err := r.tracer.TraceSave(ctx, string(name), func(ctx context.Context) error {
				return r.writeOne(ctx, def, id, version, event, origin)
			})
			if err != nil {
				res.Err = err
				r.logger.Error("write failed, self-heal via replay recommended",
					"projection", name, "projectionId", id, "version", version.Revision, "err", err)
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// SaveTargeted — запись в одну явно заданную версию (SPEC_FULL §4.5):
// используется воркером пересборки, который знает, какую Building-версию
// он питает.
func (r *Repository) SaveTargeted(ctx context.Context, projectionID string, projectionType any, event Event, origin Origin, version Version) error {
	if event == nil {
		return InvalidArgument("event must not be nil")
	}
	if !version.Status.Writable() {
		return InvalidArgument(fmt.Sprintf("version %d has non-writable status %s", version.Revision, version.Status))
	}

	name := r.contractID.Resolve(projectionType)
	if !version.Name.Equal(name) {
		return InvalidArgument(fmt.Sprintf("version projection name %q does not match type contract id %q", version.Name, name))
	}

	def, ok := r.registry.Get(name)
	if !ok {
		return InvalidArgument(fmt.Sprintf("projection %s is not registered", name))
	}

	err := r.tracer.TraceSave(ctx, string(name), func(ctx context.Context) error {
		return r.writeOne(ctx, def, projectionID, version, event, origin)
	})
	if err != nil {
		return WriteFailed(version, err)
	}
	return nil
}

func (r *Repository) writeOne(ctx context.Context, def Definition, projectionID string, version Version, event Event, origin Origin) error {
	stream, err := r.loader.Reconstruct(ctx, version, projectionID, def)
	if err != nil {
		return fmt.Errorf("loading current stream: %w", err)
	}
	snapshot, err := stream.Snapshot()
	if err != nil {
		return fmt.Errorf("loading snapshot meta: %w", err)
	}

	// snapshot.Revision is 0 (NoSnapshot) for non-snapshottable projections,
	// so the marker formula collapses to the same expression either way.
	marker := r.loader.strategy.GetSnapshotMarker(stream.Commits, snapshot.Revision)

	commit := Commit{
		ProjectionID:   projectionID,
		Version:        version,
		Event:          event,
		SnapshotMarker: marker,
		Origin:         origin,
		PersistedAt:    r.clock(),
	}
	if err := r.store.Save(ctx, commit); err != nil {
		return fmt.Errorf("persisting commit: %w", err)
	}
	return nil
}

// Get — синхронное чтение (SPEC_FULL §4.6): резолвит Live-версию, грузит
// снапшот, прогоняет страничный цикл и сворачивает в состояние проекции.
// Если Live-версии нет, возвращает нулевое состояние и предупреждение в лог
// без ошибки.
func (r *Repository) Get(ctx context.Context, tenant string, projectionType any, projectionID string) (any, error) {
	name := r.contractID.Resolve(projectionType)
	def, ok := r.registry.Get(name)
	if !ok {
		return nil, InvalidArgument(fmt.Sprintf("projection %s is not registered", name))
	}

	var versions Versions
	err := r.tracer.TraceResolve(ctx, string(name), func(ctx context.Context) error {
		v, err := r.resolver.GetProjectionVersions(ctx, name, tenant)
		versions = v
		return err
	})
	if err != nil {
		return nil, err
	}
	if versions.Live == nil {
		r.logger.Warn("no live version, returning zero state", "projection", name, "projectionId", projectionID)
		return def.Zero(), nil
	}

	stream, err := r.loader.Reconstruct(ctx, *versions.Live, projectionID, def)
	if err != nil {
		return nil, ReadFailed(err)
	}

	state, err := stream.RestoreFromHistory(def)
	if err != nil {
		return nil, ReadFailed(err)
	}
	return state, nil
}

// GetWithProgress — Get с отчетом о ходе страничного цикла через onProgress,
// вызываемый синхронно после загрузки каждой страницы (SPEC_FULL §9,
// grounded in the teacher's ReplayWithProgress). Off by default: Get itself
// never reports progress.
func (r *Repository) GetWithProgress(ctx context.Context, tenant string, projectionType any, projectionID string, onProgress ProgressCallback) (any, error) {
	name := r.contractID.Resolve(projectionType)
	def, ok := r.registry.Get(name)
	if !ok {
		return nil, InvalidArgument(fmt.Sprintf("projection %s is not registered", name))
	}

	var versions Versions
	err := r.tracer.TraceResolve(ctx, string(name), func(ctx context.Context) error {
		v, err := r.resolver.GetProjectionVersions(ctx, name, tenant)
		versions = v
		return err
	})
	if err != nil {
		return nil, err
	}
	if versions.Live == nil {
		r.logger.Warn("no live version, returning zero state", "projection", name, "projectionId", projectionID)
		return def.Zero(), nil
	}

	stream, err := r.loader.ReconstructWithProgress(ctx, *versions.Live, projectionID, def, onProgress)
	if err != nil {
		return nil, ReadFailed(err)
	}

	state, err := stream.RestoreFromHistory(def)
	if err != nil {
		return nil, ReadFailed(err)
	}
	return state, nil
}

// AsyncResult — результат асинхронного Get, доставленный по каналу.
type AsyncResult struct {
	State any
	Err   error
}

// GetAsync — неблокирующий фасад над Get (SPEC_FULL §5 collapses sync/async
// duplication): запускает то же чтение в отдельной goroutine, с отменой на
// каждой точке подвеса через ctx, который уже пронизывает цикл в Loader.
func (r *Repository) GetAsync(ctx context.Context, tenant string, projectionType any, projectionID string) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		state, err := r.Get(ctx, tenant, projectionType, projectionID)
		select {
		case out <- AsyncResult{State: state, Err: err}:
		case <-ctx.Done():
		}
	}()
	return out
}
