package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bix/internal/index"
)

// CatalogFile is the name of the SQLite database inside the data directory.
const CatalogFile = "catalog.db"

// Options selects and configures the catalog backend.
type Options struct {
	// Driver is "sqlite", "postgres" or "memory".
	Driver string
	// DataDir holds the SQLite database file.
	DataDir string
	// Postgres is used when Driver is "postgres".
	Postgres ConnParams
}

// NewCatalogFromOptions opens the catalog backend named by opts.
func NewCatalogFromOptions(ctx context.Context, opts Options) (index.Catalog, error) {
	switch opts.Driver {
	case "sqlite":
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(opts.DataDir, CatalogFile))
	case "memory":
		return NewSQLiteCatalog(":memory:")
	case "postgres":
		return NewPostgresCatalog(ctx, opts.Postgres)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
