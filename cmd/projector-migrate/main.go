// Command projector-migrate applies and inspects the PostgreSQL schema that
// backs projectionstore.PostgresStore/PostgresSnapshotStore.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/akriventsev/projector/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	dbURL := flag.String("database-url", "", "PostgreSQL connection string")
	migrationsDir := flag.String("migrations-dir", "./migrations/sql", "Path to migrations directory")
	schema := flag.String("schema", "public", "Schema that ensure-schema checks for projection_commits/projection_snapshots")
	flag.CommandLine.Parse(os.Args[2:])

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "Error: --database-url is required")
		os.Exit(1)
	}

	ctx := context.Background()

	switch command {
	case "up":
		runUp(ctx, *dbURL, *migrationsDir, *schema)
	case "up-to":
		if len(flag.Args()) == 0 {
			fmt.Fprintln(os.Stderr, "Error: step count is required")
			os.Exit(1)
		}
		steps, _ := strconv.ParseInt(flag.Args()[0], 10, 64)
		runUpLimited(ctx, *dbURL, *migrationsDir, *schema, steps)
	case "down":
		runDown(ctx, *dbURL, *migrationsDir, *schema, 1)
	case "down-to":
		if len(flag.Args()) == 0 {
			fmt.Fprintln(os.Stderr, "Error: step count is required")
			os.Exit(1)
		}
		steps, _ := strconv.ParseInt(flag.Args()[0], 10, 64)
		runDown(ctx, *dbURL, *migrationsDir, *schema, steps)
	case "status":
		runStatus(ctx, *dbURL, *migrationsDir, *schema)
	case "version":
		runVersion(ctx, *dbURL, *migrationsDir, *schema)
	case "ensure-schema":
		runEnsureSchema(ctx, *dbURL, *migrationsDir, *schema)
	case "create":
		if len(flag.Args()) == 0 {
			fmt.Fprintln(os.Stderr, "Error: migration name is required")
			os.Exit(1)
		}
		if err := migrations.CreateMigration(*migrationsDir, flag.Args()[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("projector-migrate")
	fmt.Println()
	fmt.Println("Usage: projector-migrate <command> [flags] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              - Apply all pending migrations")
	fmt.Println("  up-to <N>       - Apply up to N pending migrations")
	fmt.Println("  down            - Rollback the last applied migration")
	fmt.Println("  down-to <N>     - Rollback N migrations")
	fmt.Println("  status          - Show status of all migrations")
	fmt.Println("  version         - Show current schema version")
	fmt.Println("  ensure-schema   - Apply migrations and verify projection tables exist")
	fmt.Println("  create <name>   - Create a new migration file")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --database-url    - PostgreSQL connection string (required)")
	fmt.Println("  --migrations-dir  - Path to migrations directory (default: ./migrations/sql)")
	fmt.Println("  --schema          - Schema that ensure-schema checks for projection tables (default: public)")
}

func openMigrator(dbURL, dir, schema string) (*sql.DB, *migrations.Migrator) {
	if err := migrations.SetDialect("postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return db, migrations.NewMigrator(db, dir, schema)
}

func runUp(ctx context.Context, dbURL, dir, schema string) {
	db, m := openMigrator(dbURL, dir, schema)
	defer db.Close()
	if err := m.Up(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migrations applied successfully")
}

func runUpLimited(ctx context.Context, dbURL, dir, schema string, steps int64) {
	db, m := openMigrator(dbURL, dir, schema)
	defer db.Close()
	if err := m.UpTo(steps); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Applied up to %d migration(s)\n", steps)
}

func runDown(ctx context.Context, dbURL, dir, schema string, steps int64) {
	db, m := openMigrator(dbURL, dir, schema)
	defer db.Close()
	if err := m.Down(steps); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rolled back %d migration(s)\n", steps)
}

func runStatus(ctx context.Context, dbURL, dir, schema string) {
	db, m := openMigrator(dbURL, dir, schema)
	defer db.Close()
	statuses, err := m.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration Status:")
	for _, s := range statuses {
		fmt.Printf("[%s] %d - %s", s.Status, s.Version, s.Name)
		if s.AppliedAt != nil {
			fmt.Printf(" (applied at %s)", s.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

func runVersion(ctx context.Context, dbURL, dir, schema string) {
	db, m := openMigrator(dbURL, dir, schema)
	defer db.Close()
	version, err := m.Version()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(version)
}

func runEnsureSchema(ctx context.Context, dbURL, dir, schema string) {
	db, m := openMigrator(dbURL, dir, schema)
	defer db.Close()
	if err := m.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Schema ready: projection_commits, projection_snapshots present")
}
