package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bix/internal/database/migrations"
	"bix/internal/index"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements the index.Catalog interface using SQLite.
type SQLiteCatalog struct {
	db   *sql.DB
	path string

	// tagIDs caches the seeded tag vocabulary, loaded once per open so the
	// upsert path never does a per-tag round trip.
	tagIDs map[string]int64
}

// NewSQLiteCatalog opens (or creates) the catalog at path and brings its
// schema to the latest version. path can be a file path or ":memory:".
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db, migrations.DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}

	c := &SQLiteCatalog{db: db, path: path}
	if err := c.loadTagIDs(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the catalog relies on. Exported for tools and tests.
//
// The PRAGMAs ride in the DSN so the driver applies them to every pool
// connection; foreign keys are off by default for backward compatibility,
// and an Exec-ed PRAGMA would only configure whichever connection ran it.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" gets its own empty database, so the
	// pool must be pinned to a single connection there.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func (c *SQLiteCatalog) loadTagIDs() error {
	rows, err := c.db.Query(`SELECT id, tag_name FROM file_tags`)
	if err != nil {
		return fmt.Errorf("loading tag vocabulary: %w", err)
	}
	defer rows.Close()

	c.tagIDs = make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scanning tag: %w", err)
		}
		c.tagIDs[name] = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating tags: %w", err)
	}
	return nil
}

// EnsureSource returns the id of the named source, creating it if absent.
func (c *SQLiteCatalog) EnsureSource(ctx context.Context, src index.Source) (int64, error) {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO backup_sources (source_name, source_type, source_path, description)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(source_name) DO NOTHING`,
		src.Name, src.Type, src.Path, src.Description)
	if err != nil {
		return 0, fmt.Errorf("creating backup source: %w", err)
	}

	var id int64
	err = c.db.QueryRowContext(ctx,
		`SELECT id FROM backup_sources WHERE source_name = ?`, src.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("finding backup source: %w", err)
	}
	return id, nil
}

// BeginSession creates a new running session row.
func (c *SQLiteCatalog) BeginSession(ctx context.Context, sourceID int64, command string, start time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO backup_sessions (source_id, session_start, backup_command, status)
		 VALUES (?, ?, ?, ?)`,
		sourceID, start, command, string(index.SessionRunning))
	if err != nil {
		return 0, fmt.Errorf("creating backup session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading session id: %w", err)
	}
	return id, nil
}

// UpsertFile reconciles one file record in a single transaction: identity
// lookup, full-column insert or update, then tag delete + insert. The
// transaction boundary is what keeps two concurrent re-indexes of the same
// identity from interleaving their tag replacement.
func (c *SQLiteCatalog) UpsertFile(ctx context.Context, rec index.FileRecord) (int64, bool, error) {
	tagIDs, err := c.resolveTags(rec.Tags)
	if err != nil {
		return 0, false, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	m := rec.Meta
	var fileID int64
	wasNew := false

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM backup_files
		 WHERE source_id = ? AND relative_path = ? AND filename = ?`,
		rec.SourceID, m.RelativePath, m.Filename).Scan(&fileID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO backup_files (
			     session_id, source_id, relative_path, full_local_path, filename,
			     file_extension, file_size_bytes, file_modified_time,
			     file_checksum_md5, file_checksum_sha256, backup_date, mime_type,
			     is_compressed, compression_type, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SessionID, rec.SourceID, m.RelativePath, m.FullPath, m.Filename,
			m.Extension, m.SizeBytes, m.ModifiedTime,
			nullString(m.ChecksumMD5), nullString(m.ChecksumSHA256), rec.BackupDate,
			nullString(m.MIMEType), m.IsCompressed, nullString(m.CompressionType),
			rec.BackupDate)
		if err != nil {
			return 0, false, fmt.Errorf("inserting file: %w", err)
		}
		fileID, err = res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("reading file id: %w", err)
		}
		wasNew = true
	case err != nil:
		return 0, false, fmt.Errorf("finding file: %w", err)
	default:
		// Full replace: a checksum that was computed before and is skipped
		// now gets nulled out, not preserved stale.
		_, err = tx.ExecContext(ctx,
			`UPDATE backup_files SET
			     session_id = ?, full_local_path = ?, file_size_bytes = ?,
			     file_modified_time = ?, file_checksum_md5 = ?,
			     file_checksum_sha256 = ?, backup_date = ?, mime_type = ?,
			     is_compressed = ?, compression_type = ?, updated_at = ?
			 WHERE id = ?`,
			rec.SessionID, m.FullPath, m.SizeBytes,
			m.ModifiedTime, nullString(m.ChecksumMD5),
			nullString(m.ChecksumSHA256), rec.BackupDate, nullString(m.MIMEType),
			m.IsCompressed, nullString(m.CompressionType), rec.BackupDate,
			fileID)
		if err != nil {
			return 0, false, fmt.Errorf("updating file: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM backup_file_tags WHERE file_id = ?`, fileID); err != nil {
		return 0, false, fmt.Errorf("clearing file tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO backup_file_tags (file_id, tag_id) VALUES (?, ?)
			 ON CONFLICT DO NOTHING`, fileID, tagID); err != nil {
			return 0, false, fmt.Errorf("tagging file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing upsert: %w", err)
	}
	return fileID, wasNew, nil
}

// resolveTags maps tag names to ids using the cached vocabulary. An unknown
// name means the store is missing its seed data.
func (c *SQLiteCatalog) resolveTags(names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := c.tagIDs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", index.ErrUnknownTag, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FinishSession records the end of a session along with its counters.
func (c *SQLiteCatalog) FinishSession(ctx context.Context, sessionID int64, status index.SessionStatus, counters index.Counters, end time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE backup_sessions
		 SET session_end = ?, status = ?, total_files = ?, total_size_bytes = ?, files_added = ?
		 WHERE id = ?`,
		end, string(status), counters.FilesProcessed, counters.TotalBytes,
		counters.FilesAdded, sessionID)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// RecordDatabaseBackup stores the auxiliary dump record; at most one per file.
func (c *SQLiteCatalog) RecordDatabaseBackup(ctx context.Context, rec index.DatabaseBackup) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO database_backups (file_id, database_type, database_name, backup_type, dump_command)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO NOTHING`,
		rec.FileID, rec.DatabaseType, nullString(rec.DatabaseName), rec.BackupType,
		nullString(rec.DumpCommand))
	if err != nil {
		return fmt.Errorf("recording database backup: %w", err)
	}
	return nil
}

// ListSources returns all cataloged sources ordered by name.
func (c *SQLiteCatalog) ListSources(ctx context.Context) ([]*index.SourceRow, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, source_name, source_type, source_path, description
		 FROM backup_sources ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var result []*index.SourceRow
	for rows.Next() {
		s := &index.SourceRow{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Path, &s.Description); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return result, nil
}

// ListSessions returns the most recent sessions, newest first.
func (c *SQLiteCatalog) ListSessions(ctx context.Context, limit int) ([]*index.SessionRow, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, source_id, session_start, session_end, backup_command, status,
		        total_files, total_size_bytes, files_added
		 FROM backup_sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var result []*index.SessionRow
	for rows.Next() {
		s := &index.SessionRow{}
		var end sql.NullTime
		var status string
		if err := rows.Scan(&s.ID, &s.SourceID, &s.Start, &end, &s.Command, &status,
			&s.TotalFiles, &s.TotalSizeBytes, &s.FilesAdded); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if end.Valid {
			t := end.Time
			s.End = &t
		}
		s.Status = index.SessionStatus(status)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return result, nil
}

// Path returns the database file path (or ":memory:").
func (c *SQLiteCatalog) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// nullString converts an optional string to a driver value, keeping the
// distinction between absent and empty.
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Compile-time check that SQLiteCatalog implements index.Catalog.
var _ index.Catalog = (*SQLiteCatalog)(nil)
