package testutil

import (
	"testing"

	"bix/internal/database"
	"bix/internal/index"
)

// NewTestCatalog creates a new in-memory SQLite catalog with schema and tag
// vocabulary applied. The catalog is automatically closed when the test
// completes.
func NewTestCatalog(t *testing.T) index.Catalog {
	t.Helper()

	catalog, err := database.NewSQLiteCatalog(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}

	t.Cleanup(func() {
		catalog.Close()
	})

	return catalog
}
