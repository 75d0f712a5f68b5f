package notify

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationFiles contains the SQL migrations of the notify_* tables, one
// directory per driver (mysql, postgres, sqlite3). Legislative tables
// belong to the host application and are not created here.
//
// Users can apply the files with their preferred migration tool, for
// example goose:
//
//	sub, _ := fs.Sub(notify.MigrationFiles, "migrations/postgres")
//	goose.SetBaseFS(sub)
//	goose.Up(db, ".")
//
// or call ApplyMigrations.
//
//go:embed migrations/*/*.sql
var MigrationFiles embed.FS

const migrationsTable = "notify_schema_migrations"

// ApplyMigrations runs the embedded migrations for driverName that have not
// been applied yet, in file name order. Each file runs once; applied files
// are recorded in notify_schema_migrations.
func ApplyMigrations(ctx context.Context, db *sql.DB, driverName string) error {
	dir := path.Join("migrations", driverName)
	entries, err := fs.ReadDir(MigrationFiles, dir)
	if err != nil {
		return NewErrorWithCause(ErrCodeConfiguration, "no migrations for driver "+driverName, err)
	}

	create := "CREATE TABLE IF NOT EXISTS " + migrationsTable +
		" (name VARCHAR(255) NOT NULL PRIMARY KEY, applied_at VARCHAR(64) NOT NULL)"
	if _, err := db.ExecContext(ctx, create); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to create migrations table", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		body, err := fs.ReadFile(MigrationFiles, path.Join(dir, name))
		if err != nil {
			return NewErrorWithCause(ErrCodeConfiguration, "failed to read migration "+name, err)
		}
		for _, stmt := range splitStatements(string(body)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return NewErrorWithCause(ErrCodeDatabase, fmt.Sprintf("migration %s failed", name), err)
			}
		}
		record := "INSERT INTO " + migrationsTable + " (name, applied_at) VALUES (" +
			placeholder(driverName, 1) + ", " + placeholder(driverName, 2) + ")"
		if _, err := db.ExecContext(ctx, record, name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to record migration "+name, err)
		}
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM "+migrationsTable)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to read applied migrations", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, NewErrorWithCause(ErrCodeDatabase, "failed to read applied migrations", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// splitStatements splits a migration file on statement terminators,
// dropping comment lines.
func splitStatements(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var out []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func placeholder(driverName string, n int) string {
	if driverName == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
