package index

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownTag is returned when the classifier produced a tag name that is
// not present in the seeded file_tags vocabulary. This is a configuration
// problem (missing or outdated schema seed), not a per-file failure, and
// aborts the source's scan instead of being counted and skipped.
var ErrUnknownTag = errors.New("tag name not in vocabulary")

// Source describes a configured backup root.
type Source struct {
	Name        string
	Type        string
	Path        string
	Description string
}

// SessionStatus is the lifecycle state of an indexing session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Counters accumulates per-session statistics. Each worker owns its own
// Counters value; they are merged after the run, so no locking is needed.
type Counters struct {
	FilesProcessed int64
	FilesAdded     int64
	FilesUpdated   int64
	FilesSkipped   int64
	Errors         int64
	TotalBytes     int64
}

// Merge adds o's counts into c.
func (c *Counters) Merge(o Counters) {
	c.FilesProcessed += o.FilesProcessed
	c.FilesAdded += o.FilesAdded
	c.FilesUpdated += o.FilesUpdated
	c.FilesSkipped += o.FilesSkipped
	c.Errors += o.Errors
	c.TotalBytes += o.TotalBytes
}

// FileRecord is one file's worth of catalog state: the extracted metadata,
// the tag set computed from it, and the session that observed it.
type FileRecord struct {
	SourceID   int64
	SessionID  int64
	Meta       *Metadata
	Tags       []string
	BackupDate time.Time
}

// SourceRow is a persisted backup source.
type SourceRow struct {
	ID          int64
	Name        string
	Type        string
	Path        string
	Description string
}

// SessionRow is a persisted indexing session.
type SessionRow struct {
	ID             int64
	SourceID       int64
	Start          time.Time
	End            *time.Time
	Command        string
	Status         SessionStatus
	TotalFiles     int64
	TotalSizeBytes int64
	FilesAdded     int64
}

// DatabaseBackup is an auxiliary record for files that look like database
// dumps. At most one exists per file.
type DatabaseBackup struct {
	FileID       int64
	DatabaseType string
	DatabaseName *string
	BackupType   string
	DumpCommand  *string
}

// Catalog is the narrow contract to the relational catalog store.
// Implementations own idempotency and the atomicity of tag replacement:
// UpsertFile must run the identity lookup, row write, and tag delete/insert
// as a single transaction.
type Catalog interface {
	// EnsureSource returns the id of the source with the given name,
	// creating it if absent. Keyed on name; idempotent.
	EnsureSource(ctx context.Context, src Source) (int64, error)

	// BeginSession creates a new session row with status running.
	// Every scan gets a fresh session; sessions are never resumed.
	BeginSession(ctx context.Context, sourceID int64, command string, start time.Time) (int64, error)

	// UpsertFile reconciles one file against the catalog. Identity is
	// (source_id, relative_path, filename). On update every mutable column
	// is overwritten — a checksum that is no longer computed is nulled, not
	// preserved. The tag association is fully replaced with rec.Tags.
	// Returns ErrUnknownTag if a tag name is not in the seeded vocabulary.
	UpsertFile(ctx context.Context, rec FileRecord) (fileID int64, wasNew bool, err error)

	// FinishSession writes the end timestamp, final status, and counters.
	// Called exactly once per session.
	FinishSession(ctx context.Context, sessionID int64, status SessionStatus, c Counters, end time.Time) error

	// RecordDatabaseBackup stores an auxiliary database_backups row.
	// A second call for the same file is a no-op.
	RecordDatabaseBackup(ctx context.Context, db DatabaseBackup) error

	// ListSources returns all cataloged sources ordered by name.
	ListSources(ctx context.Context) ([]*SourceRow, error)

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]*SessionRow, error)

	// Close releases the underlying store connection(s).
	Close() error
}
