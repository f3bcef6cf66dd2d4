package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations

	"bix/internal/database/migrations"
	"bix/internal/index"
)

// ConnParams holds the PostgreSQL connection parameters. The password is
// never persisted to disk; it arrives via flag, environment or prompt.
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

func (p ConnParams) dsn() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   p.Database,
	}
	return u.String()
}

// PostgresCatalog implements the index.Catalog interface using PostgreSQL.
type PostgresCatalog struct {
	pool   *pgxpool.Pool
	tagIDs map[string]int64
}

// NewPostgresCatalog connects to the server, brings the schema to the latest
// version and returns a catalog backed by a connection pool.
func NewPostgresCatalog(ctx context.Context, params ConnParams) (*PostgresCatalog, error) {
	dsn := params.dsn()

	// Migrations run over a short-lived database/sql connection; the pool
	// below only ever sees a fully migrated schema.
	mdb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrations.MigrateUp(mdb, migrations.DialectPostgres); err != nil {
		mdb.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}
	if err := mdb.Close(); err != nil {
		return nil, fmt.Errorf("closing migration connection: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	c := &PostgresCatalog{pool: pool}
	if err := c.loadTagIDs(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCatalog) loadTagIDs(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT id, tag_name FROM file_tags`)
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
func (c *PostgresCatalog) EnsureSource(ctx context.Context, src index.Source) (int64, error) {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO backup_sources (source_name, source_type, source_path, description)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source_name) DO NOTHING`,
		src.Name, src.Type, src.Path, src.Description)
	if err != nil {
		return 0, fmt.Errorf("creating backup source: %w", err)
	}

	var id int64
	err = c.pool.QueryRow(ctx,
		`SELECT id FROM backup_sources WHERE source_name = $1`, src.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("finding backup source: %w", err)
	}
	return id, nil
}

// BeginSession creates a new running session row.
func (c *PostgresCatalog) BeginSession(ctx context.Context, sourceID int64, command string, start time.Time) (int64, error) {
	var id int64
	err := c.pool.QueryRow(ctx,
		`INSERT INTO backup_sessions (source_id, session_start, backup_command, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		sourceID, start, command, string(index.SessionRunning)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating backup session: %w", err)
	}
	return id, nil
}

// UpsertFile reconciles one file record in a single transaction. See
// SQLiteCatalog.UpsertFile for the semantics; this is the same flow with
// positional placeholders and RETURNING.
func (c *PostgresCatalog) UpsertFile(ctx context.Context, rec index.FileRecord) (int64, bool, error) {
	tagIDs, err := c.resolveTags(rec.Tags)
	if err != nil {
		return 0, false, err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	m := rec.Meta
	var fileID int64
	wasNew := false

	err = tx.QueryRow(ctx,
		`SELECT id FROM backup_files
		 WHERE source_id = $1 AND relative_path = $2 AND filename = $3`,
		rec.SourceID, m.RelativePath, m.Filename).Scan(&fileID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO backup_files (
			     session_id, source_id, relative_path, full_local_path, filename,
			     file_extension, file_size_bytes, file_modified_time,
			     file_checksum_md5, file_checksum_sha256, backup_date, mime_type,
			     is_compressed, compression_type, updated_at
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING id`,
			rec.SessionID, rec.SourceID, m.RelativePath, m.FullPath, m.Filename,
			m.Extension, m.SizeBytes, m.ModifiedTime,
			m.ChecksumMD5, m.ChecksumSHA256, rec.BackupDate,
			m.MIMEType, m.IsCompressed, m.CompressionType,
			rec.BackupDate).Scan(&fileID)
		if err != nil {
			return 0, false, fmt.Errorf("inserting file: %w", err)
		}
		wasNew = true
	case err != nil:
		return 0, false, fmt.Errorf("finding file: %w", err)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE backup_files SET
			     session_id = $1, full_local_path = $2, file_size_bytes = $3,
			     file_modified_time = $4, file_checksum_md5 = $5,
			     file_checksum_sha256 = $6, backup_date = $7, mime_type = $8,
			     is_compressed = $9, compression_type = $10, updated_at = $11
			 WHERE id = $12`,
			rec.SessionID, m.FullPath, m.SizeBytes,
			m.ModifiedTime, m.ChecksumMD5,
			m.ChecksumSHA256, rec.BackupDate, m.MIMEType,
			m.IsCompressed, m.CompressionType, rec.BackupDate,
			fileID)
		if err != nil {
			return 0, false, fmt.Errorf("updating file: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM backup_file_tags WHERE file_id = $1`, fileID); err != nil {
		return 0, false, fmt.Errorf("clearing file tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO backup_file_tags (file_id, tag_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, fileID, tagID); err != nil {
			return 0, false, fmt.Errorf("tagging file: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("committing upsert: %w", err)
	}
	return fileID, wasNew, nil
}

func (c *PostgresCatalog) resolveTags(names []string) ([]int64, error) {
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
func (c *PostgresCatalog) FinishSession(ctx context.Context, sessionID int64, status index.SessionStatus, counters index.Counters, end time.Time) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE backup_sessions
		 SET session_end = $1, status = $2, total_files = $3, total_size_bytes = $4, files_added = $5
		 WHERE id = $6`,
		end, string(status), counters.FilesProcessed, counters.TotalBytes,
		counters.FilesAdded, sessionID)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// RecordDatabaseBackup stores the auxiliary dump record; at most one per file.
func (c *PostgresCatalog) RecordDatabaseBackup(ctx context.Context, rec index.DatabaseBackup) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO database_backups (file_id, database_type, database_name, backup_type, dump_command)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (file_id) DO NOTHING`,
		rec.FileID, rec.DatabaseType, rec.DatabaseName, rec.BackupType, rec.DumpCommand)
	if err != nil {
		return fmt.Errorf("recording database backup: %w", err)
	}
	return nil
}

// ListSources returns all cataloged sources ordered by name.
func (c *PostgresCatalog) ListSources(ctx context.Context) ([]*index.SourceRow, error) {
	rows, err := c.pool.Query(ctx,
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
func (c *PostgresCatalog) ListSessions(ctx context.Context, limit int) ([]*index.SessionRow, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, source_id, session_start, session_end, backup_command, status,
		        total_files, total_size_bytes, files_added
		 FROM backup_sessions ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var result []*index.SessionRow
	for rows.Next() {
		s := &index.SessionRow{}
		var end *time.Time
		var status string
		if err := rows.Scan(&s.ID, &s.SourceID, &s.Start, &end, &s.Command, &status,
			&s.TotalFiles, &s.TotalSizeBytes, &s.FilesAdded); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.End = end
		s.Status = index.SessionStatus(status)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return result, nil
}

// Close releases the connection pool.
func (c *PostgresCatalog) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

var _ index.Catalog = (*PostgresCatalog)(nil)
