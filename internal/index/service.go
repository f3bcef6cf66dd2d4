package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"bix/internal/scan"
)

// Service is the orchestration layer: it owns the session lifecycle per
// source and drives scan -> extract -> classify -> upsert for each file.
type Service struct {
	catalog    Catalog
	scanner    *scan.Scanner
	extractor  *Extractor
	classifier *Classifier
	logger     Logger
	clock      Clock
	workers    int
}

// NewService creates a Service. workers bounds the extractor pool; 1 means
// fully sequential processing.
func NewService(catalog Catalog, scanner *scan.Scanner, extractor *Extractor, classifier *Classifier, logger Logger, clock Clock, workers int) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if workers < 1 {
		workers = 1
	}
	return &Service{
		catalog:    catalog,
		scanner:    scanner,
		extractor:  extractor,
		classifier: classifier,
		logger:     logger,
		clock:      clock,
		workers:    workers,
	}
}

// SourceResult is the outcome of indexing one source.
type SourceResult struct {
	Source    Source
	SessionID int64
	Status    SessionStatus
	Counters  Counters
	Err       error
}

// Summary aggregates a whole run across sources.
type Summary struct {
	Results []*SourceResult
	Totals  Counters
	Failed  int
}

// IndexAll indexes every configured source in order. A failed source does
// not abort the remaining ones; per-source outcomes land in the Summary.
// The returned error is non-nil only for run-level problems: cancellation,
// or a configuration error such as an unseeded tag vocabulary.
func (s *Service) IndexAll(ctx context.Context, sources []Source) (*Summary, error) {
	summary := &Summary{}
	if len(sources) == 0 {
		s.logger.Warn("no backup sources configured")
		return summary, nil
	}

	for _, src := range sources {
		s.logger.Info("indexing source", "source", src.Name, "path", src.Path)
		res := s.IndexSource(ctx, src)
		summary.Results = append(summary.Results, res)
		summary.Totals.Merge(res.Counters)
		if res.Status != SessionCompleted {
			summary.Failed++
		}
		if res.Err != nil {
			if errors.Is(res.Err, ErrUnknownTag) {
				// Configuration error: surface immediately, don't degrade.
				return summary, res.Err
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.logger.Error("source failed", "source", src.Name, "error", res.Err)
		}
	}

	t := summary.Totals
	s.logger.Info("indexing finished",
		"files_processed", t.FilesProcessed,
		"files_added", t.FilesAdded,
		"files_updated", t.FilesUpdated,
		"files_skipped", t.FilesSkipped,
		"errors", t.Errors,
		"total_bytes", t.TotalBytes,
		"sources_failed", summary.Failed)
	return summary, nil
}

// IndexSource runs one session against one source. The session is created
// up front and finalized exactly once: completed on a normal end of scan,
// failed on a root enumeration error or cancellation. Per-file errors are
// counted, never fatal.
func (s *Service) IndexSource(ctx context.Context, src Source) *SourceResult {
	res := &SourceResult{Source: src, Status: SessionFailed}

	sourceID, err := s.catalog.EnsureSource(ctx, src)
	if err != nil {
		res.Err = fmt.Errorf("ensuring source %q: %w", src.Name, err)
		return res
	}

	start := s.clock.Now().UTC()
	sessionID, err := s.catalog.BeginSession(ctx, sourceID, "Directory scan: "+src.Path, start)
	if err != nil {
		res.Err = fmt.Errorf("beginning session for %q: %w", src.Name, err)
		return res
	}
	res.SessionID = sessionID
	s.logger.Info("session started", "source", src.Name, "session_id", sessionID)

	counters, runErr := s.runPipeline(ctx, sourceID, sessionID, src.Path)
	res.Counters = counters
	if runErr != nil {
		res.Err = runErr
	} else {
		res.Status = SessionCompleted
	}

	// Finalize even when the run was canceled; the session row should
	// record how it ended.
	end := s.clock.Now().UTC()
	if err := s.catalog.FinishSession(context.WithoutCancel(ctx), sessionID, res.Status, counters, end); err != nil {
		s.logger.Error("finishing session failed", "session_id", sessionID, "error", err)
		if res.Err == nil {
			res.Err = fmt.Errorf("finishing session %d: %w", sessionID, err)
			res.Status = SessionFailed
		}
	}

	s.logger.Info("session finished",
		"source", src.Name,
		"session_id", sessionID,
		"status", string(res.Status),
		"files_processed", counters.FilesProcessed,
		"files_added", counters.FilesAdded,
		"files_updated", counters.FilesUpdated,
		"files_skipped", counters.FilesSkipped,
		"errors", counters.Errors,
		"total_bytes", counters.TotalBytes)
	return res
}

// runPipeline walks the root and fans entries out to the worker pool. Each
// worker accumulates its own Counters; the accumulators are merged after the
// pool drains, so no counter state is shared while running.
func (s *Service) runPipeline(ctx context.Context, sourceID, sessionID int64, root string) (Counters, error) {
	entries := make(chan scan.Entry, s.workers)
	accs := make([]Counters, s.workers)
	var skipped int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(entries)
		n, err := s.scanner.Walk(gctx, root, func(e scan.Entry) error {
			select {
			case entries <- e:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		skipped = n
		if err != nil {
			return fmt.Errorf("enumerating %s: %w", root, err)
		}
		return nil
	})

	for i := 0; i < s.workers; i++ {
		acc := &accs[i]
		g.Go(func() error {
			for e := range entries {
				if err := s.indexOne(gctx, sourceID, sessionID, e, acc); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()

	total := Counters{FilesSkipped: skipped}
	for i := range accs {
		total.Merge(accs[i])
	}
	return total, err
}

// indexOne processes a single candidate file. Extraction and persistence
// failures are counted and logged; only cancellation and configuration
// errors propagate.
func (s *Service) indexOne(ctx context.Context, sourceID, sessionID int64, e scan.Entry, acc *Counters) error {
	meta, err := s.extractor.Extract(e.Path, e.RelativePath)
	if err != nil {
		acc.Errors++
		s.logger.Error("metadata extraction failed", "path", e.Path, "error", err)
		return nil
	}

	tags := s.classifier.Classify(meta)
	rec := FileRecord{
		SourceID:   sourceID,
		SessionID:  sessionID,
		Meta:       meta,
		Tags:       tags,
		BackupDate: s.clock.Now().UTC(),
	}

	fileID, wasNew, err := s.catalog.UpsertFile(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrUnknownTag) || ctx.Err() != nil {
			return err
		}
		acc.Errors++
		s.logger.Error("upsert failed", "path", e.RelativePath, "error", err)
		return nil
	}

	acc.FilesProcessed++
	acc.TotalBytes += meta.SizeBytes
	if wasNew {
		acc.FilesAdded++
		s.logger.Debug("file added", "path", e.RelativePath)
	} else {
		acc.FilesUpdated++
		s.logger.Debug("file updated", "path", e.RelativePath)
	}

	s.recordDatabaseDump(ctx, fileID, meta, tags)
	return nil
}

// dumpExtensions are the database-tagged extensions that also get an
// auxiliary database_backups record.
var dumpExtensions = map[string]bool{".sql": true, ".dump": true, ".backup": true}

func (s *Service) recordDatabaseDump(ctx context.Context, fileID int64, meta *Metadata, tags []string) {
	tagged := false
	for _, t := range tags {
		if t == "database" {
			tagged = true
			break
		}
	}
	if !tagged || !dumpExtensions[meta.Extension] {
		return
	}

	rec := DatabaseBackup{
		FileID:       fileID,
		DatabaseType: inferDatabaseType(strings.ToLower(meta.Filename)),
		BackupType:   "full",
	}
	if err := s.catalog.RecordDatabaseBackup(ctx, rec); err != nil {
		s.logger.Warn("recording database backup failed", "path", meta.RelativePath, "error", err)
	}
}

func inferDatabaseType(name string) string {
	switch {
	case strings.Contains(name, "postgres") || strings.Contains(name, "pg_"):
		return "postgresql"
	case strings.Contains(name, "mysql") || strings.Contains(name, "mariadb"):
		return "mysql"
	case strings.Contains(name, "sqlite"):
		return "sqlite"
	case strings.Contains(name, "mongo"):
		return "mongodb"
	default:
		return "unknown"
	}
}
