package projectionstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/akriventsev/projector/projection"
)

// PostgresConfig конфигурация подключения к PostgreSQL-хранилищу коммитов и
// снапшотов проекций. Обобщает PostgresEventStoreConfig фреймворка
// (framework/eventsourcing/postgres_store.go) под схему projection вместо
// схемы event store агрегатов.
type PostgresConfig struct {
	DSN        string
	SchemaName string
}

// Validate проверяет корректность конфигурации.
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	return nil
}

func (c PostgresConfig) schema() string {
	if c.SchemaName == "" {
		return "public"
	}
	return c.SchemaName
}

// EventCodec переводит доменное событие проекции в байты для персистентности
// и обратно, с типом события в качестве дискриминатора. Внешняя зависимость
// ядра (Non-goal §1): конкретный формат сериализации событий остается вне
// пакета projection.
type EventCodec interface {
	Encode(event projection.Event) (eventType string, data []byte, err error)
	Decode(eventType string, data []byte) (projection.Event, error)
}

// PostgresStore — реализация C3 (projection.Store) для PostgreSQL.
type PostgresStore struct {
	config PostgresConfig
	conn   *pgx.Conn
	codec  EventCodec
}

// NewPostgresStore подключается к PostgreSQL и возвращает готовый Store.
// Таблица projection_commits создается миграциями (см. пакет migrations),
// не этим конструктором.
func NewPostgresStore(ctx context.Context, config PostgresConfig, codec EventCodec) (*PostgresStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	conn, err := pgx.Connect(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresStore{config: config, conn: conn, codec: codec}, nil
}

// Close закрывает соединение.
func (s *PostgresStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *PostgresStore) table() string {
	return fmt.Sprintf("%s.projection_commits", s.config.schema())
}

func (s *PostgresStore) Save(ctx context.Context, commit projection.Commit) error {
	eventType, data, err := s.codec.Encode(commit.Event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			projection_name, version_revision, version_status, projection_id, marker,
			event_type, event_data,
			origin_aggregate_root_id, origin_aggregate_revision, origin_event_position, origin_timestamp,
			persisted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, s.table())

	_, err = s.conn.Exec(ctx, query,
		string(commit.Version.Name), commit.Version.Revision, string(commit.Version.Status), commit.ProjectionID, commit.SnapshotMarker,
		eventType, data,
		commit.Origin.AggregateRootID, commit.Origin.AggregateRevision, commit.Origin.EventPosition, commit.Origin.Timestamp,
		commit.PersistedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, version projection.Version, projectionID string, marker int64) ([]projection.Commit, error) {
	query := fmt.Sprintf(`
		SELECT event_type, event_data,
			origin_aggregate_root_id, origin_aggregate_revision, origin_event_position, origin_timestamp,
			persisted_at
		FROM %s
		WHERE projection_name = $1 AND version_revision = $2 AND projection_id = $3 AND marker = $4
		ORDER BY id ASC
	`, s.table())

	rows, err := s.conn.Query(ctx, query, string(version.Name), version.Revision, projectionID, marker)
	if err != nil {
		return nil, fmt.Errorf("querying commits: %w", err)
	}
	defer rows.Close()

	var out []projection.Commit
	for rows.Next() {
		var eventType string
		var data []byte
		c := projection.Commit{ProjectionID: projectionID, Version: version, SnapshotMarker: marker}
		if err := rows.Scan(&eventType, &data,
			&c.Origin.AggregateRootID, &c.Origin.AggregateRevision, &c.Origin.EventPosition, &c.Origin.Timestamp,
			&c.PersistedAt); err != nil {
			return nil, fmt.Errorf("scanning commit: %w", err)
		}
		event, err := s.codec.Decode(eventType, data)
		if err != nil {
			return nil, fmt.Errorf("decoding event %s: %w", eventType, err)
		}
		c.Event = event
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostgresSnapshotStore — реализация C4 (projection.SnapshotStore) для PostgreSQL.
type PostgresSnapshotStore struct {
	config PostgresConfig
	conn   *pgx.Conn
}

// NewPostgresSnapshotStore подключается к PostgreSQL и возвращает хранилище снапшотов.
func NewPostgresSnapshotStore(ctx context.Context, config PostgresConfig) (*PostgresSnapshotStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	conn, err := pgx.Connect(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresSnapshotStore{config: config, conn: conn}, nil
}

func (s *PostgresSnapshotStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *PostgresSnapshotStore) table() string {
	return fmt.Sprintf("%s.projection_snapshots", s.config.schema())
}

func (s *PostgresSnapshotStore) LoadMeta(ctx context.Context, name projection.Name, projectionID string, version projection.Version) (projection.SnapshotMeta, error) {
	query := fmt.Sprintf(`SELECT revision FROM %s WHERE projection_name = $1 AND projection_id = $2 AND version_revision = $3`, s.table())
	var revision int64
	err := s.conn.QueryRow(ctx, query, string(name), projectionID, version.Revision).Scan(&revision)
	if err != nil {
		if err == pgx.ErrNoRows {
			return projection.SnapshotMeta{ProjectionID: projectionID, ProjectionName: name}, nil
		}
		return projection.SnapshotMeta{}, fmt.Errorf("loading snapshot meta: %w", err)
	}
	return projection.SnapshotMeta{ProjectionID: projectionID, ProjectionName: name, Revision: revision}, nil
}

func (s *PostgresSnapshotStore) Load(ctx context.Context, name projection.Name, projectionID string, version projection.Version) (projection.Snapshot, error) {
	query := fmt.Sprintf(`SELECT state, revision FROM %s WHERE projection_name = $1 AND projection_id = $2 AND version_revision = $3`, s.table())
	var state []byte
	var revision int64
	err := s.conn.QueryRow(ctx, query, string(name), projectionID, version.Revision).Scan(&state, &revision)
	if err != nil {
		if err == pgx.ErrNoRows {
			return projection.NoSnapshot(projectionID, name), nil
		}
		return projection.Snapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return projection.Snapshot{ProjectionID: projectionID, ProjectionName: name, State: state, Revision: revision}, nil
}

func (s *PostgresSnapshotStore) Save(ctx context.Context, snapshot projection.Snapshot, version projection.Version) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (projection_name, projection_id, version_revision, revision, state, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (projection_name, projection_id, version_revision)
		DO UPDATE SET revision = $4, state = $5, updated_at = now()
	`, s.table())

	_, err := s.conn.Exec(ctx, query, string(snapshot.ProjectionName), snapshot.ProjectionID, version.Revision, snapshot.Revision, snapshot.State)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}
