package testutil

import (
	"testing"

	"mediasort/internal/database"
)

// NewTestCatalog creates a new in-memory SQLite catalog with the schema
// applied. The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) *database.SQLiteCatalog {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	catalog := database.NewSQLiteCatalogFromDB(sqlDB)

	t.Cleanup(func() {
		catalog.Close()
	})

	return catalog
}
