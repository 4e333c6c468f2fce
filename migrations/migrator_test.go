package migrations

import "testing"

func TestSetDialect_EmptyDefaultsToPostgres(t *testing.T) {
	if err := SetDialect(""); err != nil {
		t.Fatalf("expected no error setting default dialect, got %v", err)
	}
}

func TestMigrator_Up(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestMigrator_UpTo(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestMigrator_Down(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestMigrator_Status(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestMigrator_Version(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestMigrator_EnsureSchema(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}
