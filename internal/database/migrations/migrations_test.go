package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateUp(t *testing.T) {
	db := openMemoryDB(t)

	if err := MigrateUp(db, DialectSQLite); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	// The full schema is present.
	for _, table := range []string{
		"backup_sources", "backup_sessions", "backup_files",
		"file_tags", "backup_file_tags", "database_backups",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}

	// The tag vocabulary is seeded.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM file_tags`).Scan(&n); err != nil {
		t.Fatalf("counting tags: %v", err)
	}
	if n != 9 {
		t.Errorf("tag count = %d, want 9", n)
	}
}

func TestMigrateUpIdempotent(t *testing.T) {
	db := openMemoryDB(t)

	if err := MigrateUp(db, DialectSQLite); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	// Second run sees no pending migrations; not an error.
	if err := MigrateUp(db, DialectSQLite); err != nil {
		t.Fatalf("MigrateUp() second call error = %v", err)
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	db := openMemoryDB(t)

	if err := CheckDBMigrationStatus(db, DialectSQLite); err == nil {
		t.Fatal("CheckDBMigrationStatus() on empty database = nil, want error")
	}

	if err := MigrateUp(db, DialectSQLite); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if err := CheckDBMigrationStatus(db, DialectSQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration = %v, want nil", err)
	}
}

func TestMigrateUpUnknownDialect(t *testing.T) {
	db := openMemoryDB(t)
	if err := MigrateUp(db, "oracle"); err == nil {
		t.Fatal("MigrateUp() with unknown dialect = nil, want error")
	}
}
