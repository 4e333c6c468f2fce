// Package migrations предоставляет обертку над goose для управления схемой
// PostgreSQL-хранилища коммитов и снапшотов проекций (projectionstore).
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
)

// SchemaTables — таблицы, которые должна содержать схема после применения
// миграций, чтобы Migrator считал ее пригодной для projection.Repository.
// Названия зеркалят projectionstore.PostgresStore/PostgresSnapshotStore.
var SchemaTables = []string{"projection_commits", "projection_snapshots"}

// MigrationStatus представляет статус одной миграции.
type MigrationStatus struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
	Status    string // "pending", "applied"
}

// Migrator управляет схемой, которую читают и пишут projectionstore.PostgresStore
// и PostgresSnapshotStore: таблицы коммитов и снапшотов проекций. В отличие от
// голого goose-runner'а, Migrator знает, какие таблицы должны существовать
// после Up, и может это подтвердить перед тем, как repository.go начнет
// читать/писать через них (EnsureSchema). Поле schema не передается goose:
// миграции применяются в схеме по умолчанию (search_path соединения), а
// schema используется только проверкой EnsureSchema и текстами ошибок.
type Migrator struct {
	db     *sql.DB
	dir    string
	schema string
}

// NewMigrator создает Migrator для заданной БД, директории миграций и схемы.
// Пустая schema означает "public".
func NewMigrator(db *sql.DB, dir, schema string) *Migrator {
	if schema == "" {
		schema = "public"
	}
	return &Migrator{db: db, dir: dir, schema: schema}
}

// Up применяет все pending миграции.
func (m *Migrator) Up() error {
	if err := goose.Up(m.db, m.dir); err != nil {
		return fmt.Errorf("applying migrations to schema %s: %w", m.schema, err)
	}
	return nil
}

// UpTo применяет не более steps pending миграций, в порядке версии.
func (m *Migrator) UpTo(steps int64) error {
	if steps <= 0 {
		return m.Up()
	}

	current, err := m.Version()
	if err != nil {
		current = 0
	}

	pending, err := m.pendingMigrations(current)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	target := pending[len(pending)-1].Version
	if int64(len(pending)) >= steps {
		target = pending[steps-1].Version
	}

	if err := goose.UpTo(m.db, m.dir, target); err != nil {
		return fmt.Errorf("applying migrations to schema %s up to version %d: %w", m.schema, target, err)
	}
	return nil
}

// Down откатывает steps миграций. steps <= 0 откатывает ровно одну.
func (m *Migrator) Down(steps int64) error {
	if steps <= 1 {
		if err := goose.Down(m.db, m.dir); err != nil {
			return fmt.Errorf("rolling back schema %s: %w", m.schema, err)
		}
		return nil
	}

	current, err := m.Version()
	if err != nil {
		return fmt.Errorf("reading schema %s version: %w", m.schema, err)
	}
	applied, err := goose.CollectMigrations(m.dir, 0, current)
	if err != nil {
		return fmt.Errorf("collecting migrations from %s: %w", m.dir, err)
	}
	target := int64(0)
	if int64(len(applied)) > steps {
		target = applied[int64(len(applied))-steps-1].Version
	}
	if err := goose.DownTo(m.db, m.dir, target); err != nil {
		return fmt.Errorf("rolling back schema %s to version %d: %w", m.schema, target, err)
	}
	return nil
}

// Status возвращает статус всех известных миграций против текущей версии схемы.
func (m *Migrator) Status() ([]MigrationStatus, error) {
	all, err := goose.CollectMigrations(m.dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collecting migrations from %s: %w", m.dir, err)
	}

	current, err := goose.GetDBVersion(m.db)
	if err != nil {
		current = 0
	}

	statuses := make([]MigrationStatus, 0, len(all))
	for _, g := range all {
		s := MigrationStatus{Version: g.Version, Name: g.Source, Status: "pending"}
		if g.Version <= current {
			var appliedAt time.Time
			err := m.db.QueryRow(
				"SELECT tstamp FROM goose_db_version WHERE version_id = $1 AND is_applied = true ORDER BY tstamp DESC LIMIT 1",
				g.Version,
			).Scan(&appliedAt)
			if err == nil {
				s.AppliedAt = &appliedAt
				s.Status = "applied"
			}
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Version возвращает текущую версию схемы.
func (m *Migrator) Version() (int64, error) {
	version, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("reading schema %s version: %w", m.schema, err)
	}
	return version, nil
}

// EnsureSchema применяет все pending миграции и затем проверяет, что
// SchemaTables действительно существуют в целевой схеме — страховка перед
// тем, как projectionstore.PostgresStore/PostgresSnapshotStore начнут
// обращаться к ним напрямую по имени, без промежуточной проверки.
func (m *Migrator) EnsureSchema(ctx context.Context) error {
	if err := m.Up(); err != nil {
		return err
	}
	for _, table := range SchemaTables {
		var exists bool
		err := m.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
			m.schema, table,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking table %s.%s: %w", m.schema, table, err)
		}
		if !exists {
			return fmt.Errorf("schema %s missing expected table %q after migrating", m.schema, table)
		}
	}
	return nil
}

func (m *Migrator) pendingMigrations(currentVersion int64) (goose.Migrations, error) {
	all, err := goose.CollectMigrations(m.dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collecting migrations from %s: %w", m.dir, err)
	}
	var pending goose.Migrations
	for _, g := range all {
		if g.Version > currentVersion {
			pending = append(pending, g)
		}
	}
	return pending, nil
}

// CreateMigration создает новый файл миграции по шаблону goose в dir.
// Не метод Migrator: используется до открытия соединения с БД, из команды
// `projector-migrate create`.
func CreateMigration(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating migrations directory %s: %w", dir, err)
	}

	timestamp := time.Now().Format("20060102150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", timestamp, name))

	content := fmt.Sprintf(`-- +goose Up
-- Migration: %s
-- Created: %s

-- Add your migration SQL here


-- +goose Down
-- Rollback migration: %s

-- Add your rollback SQL here

`, name, time.Now().Format("2006-01-02 15:04:05"), name)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing migration file %s: %w", path, err)
	}

	fmt.Printf("Created migration: %s\n", filepath.Base(path))
	return nil
}

// SetDialect устанавливает диалект БД для goose. Пустая строка означает "postgres".
func SetDialect(dialect string) error {
	if dialect == "" {
		dialect = "postgres"
	}
	return goose.SetDialect(dialect)
}
