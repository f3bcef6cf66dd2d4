package app

import (
	"context"
	"fmt"
	"os"

	"bix/internal/config"
	"bix/internal/database"
	"bix/internal/index"
	"bix/internal/scan"
)

// App is the application layer between the CLI and the index service. It
// constructs all dependencies from config and manages the catalog and log
// file lifecycle on Close.
type App struct {
	cfg     *config.Config
	catalog index.Catalog
	service *index.Service
	logFile *os.File
	runID   string
}

// New creates a fully wired App from the given config. store selects the
// catalog backend (it carries the credentials the config file never holds).
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, store database.Options, logDir string) (*App, error) {
	runID := index.UUIDGenerator{}.New()
	logger, logFile, err := newLogger(logDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	catalog, err := database.NewCatalogFromOptions(ctx, store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	adapted := &slogAdapter{l: logger}

	scanner := scan.New(scan.Config{
		SkipHidden:         cfg.Indexing.SkipHiddenFiles,
		SkipTemp:           cfg.Indexing.SkipTempFiles,
		ExcludedExtensions: cfg.Indexing.ExcludedExtensions,
	})

	extractor := index.NewExtractor(index.ExtractorConfig{
		ComputeChecksums: cfg.Indexing.ComputeChecksums,
		MD5:              cfg.Indexing.HasAlgorithm("md5"),
		SHA256:           cfg.Indexing.HasAlgorithm("sha256"),
		MaxChecksumSize:  cfg.Indexing.MaxFileSizeForChecksum,
	}, adapted)

	classifier := index.NewClassifier(cfg.Database.AutoTag)

	svc := index.NewService(catalog, scanner, extractor, classifier, adapted,
		index.RealClock{}, cfg.Indexing.Workers)

	return &App{
		cfg:     cfg,
		catalog: catalog,
		service: svc,
		logFile: logFile,
		runID:   runID,
	}, nil
}

// Sources returns the configured backup sources as index inputs.
func (a *App) Sources() []index.Source {
	sources := make([]index.Source, 0, len(a.cfg.BackupSources))
	for _, s := range a.cfg.BackupSources {
		sources = append(sources, index.Source{
			Name:        s.Name,
			Type:        s.Type,
			Path:        s.Path,
			Description: s.Description,
		})
	}
	return sources
}

// Service returns the index service.
func (a *App) Service() *index.Service {
	return a.service
}

// Catalog returns the underlying catalog, for read-only commands.
func (a *App) Catalog() index.Catalog {
	return a.catalog
}

// RunID identifies this process invocation in the log file.
func (a *App) RunID() string {
	return a.runID
}

// Close releases the catalog and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
