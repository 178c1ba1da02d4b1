// store_test.go provides the shared test database helper for store tests.
// Each test gets a fresh, migrated SQLite file in its own temp directory.
package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"

	"hostboard/internal/database"
)

// testDB opens a new SQLite database and runs migrations. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Connect(database.SQLite, database.SQLiteDSN(filepath.Join(t.TempDir(), "dashboard.db")))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := database.Migrate(db, database.SQLite); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Reset goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

func int64Ptr(v int64) *int64 { return &v }
