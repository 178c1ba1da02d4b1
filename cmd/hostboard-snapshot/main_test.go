package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostboard/internal/database"
	"hostboard/internal/models"
	"hostboard/internal/snapshot"
	"hostboard/internal/store"
)

// seedFile creates a migrated SQLite file with one category and two hosts.
func seedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := database.Connect(database.SQLite, database.SQLiteDSN(path))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(db, database.SQLite))

	ctx := context.Background()
	catID, err := store.NewCategoryStore(db).Save(ctx, &models.Category{Name: "Servers"}, 0)
	require.NoError(t, err)

	hosts := store.NewHostStore(db)
	nasID, err := hosts.Save(ctx, &models.Host{Name: "NAS", URL: "nas.lan", CategoryID: &catID}, 0)
	require.NoError(t, err)
	_, err = hosts.Save(ctx, &models.Host{Name: "Router", URL: "http://192.168.1.1"}, 0)
	require.NoError(t, err)
	require.NoError(t, hosts.UpdateStatus(ctx, nasID, models.StatusOnline, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	return path
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seedFile(t)
	outDir := filepath.Join(t.TempDir(), "export")

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"export", "-summary", src, outDir}, &out))
	assert.Contains(t, out.String(), "Categories: 1")
	assert.Contains(t, out.String(), "Hosts: 2")
	assert.Contains(t, out.String(), "  - online: 1")
	assert.Contains(t, out.String(), "Exported 1 categories and 2 hosts")
	assert.FileExists(t, filepath.Join(outDir, snapshot.HostsFile))
	assert.FileExists(t, filepath.Join(outDir, snapshot.CategoriesFile))

	dbDir := filepath.Join(t.TempDir(), "restored")
	out.Reset()
	require.NoError(t, run(ctx, []string{"import", dbDir, outDir}, &out))
	assert.Contains(t, out.String(), "Imported 1 categories and 2 hosts")

	db, err := database.Connect(database.SQLite, database.SQLiteDSN(filepath.Join(dbDir, dbFileName)))
	require.NoError(t, err)
	defer db.Close()

	list, err := store.NewHostStore(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "NAS", list[0].Name)
	assert.Equal(t, "Servers", list[0].CategoryName)
	assert.Equal(t, models.StatusOnline, list[0].Status)
	require.NotNil(t, list[0].LastChecked)
	assert.Nil(t, list[1].CategoryID)
}

func TestImportRefusesExistingDatabase(t *testing.T) {
	ctx := context.Background()
	src := seedFile(t)
	snapDir := t.TempDir()
	require.NoError(t, run(ctx, []string{"export", src, snapDir}, &bytes.Buffer{}))

	dbDir := t.TempDir()
	require.NoError(t, run(ctx, []string{"import", dbDir, snapDir}, &bytes.Buffer{}))

	err := run(ctx, []string{"import", dbDir, snapDir}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-force")

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"import", "-force", dbDir, snapDir}, &out))
	assert.Contains(t, out.String(), "Imported 1 categories and 2 hosts")
}

func TestImportExplicitFilesWithoutCategories(t *testing.T) {
	dir := t.TempDir()
	hostsFile := filepath.Join(dir, "legacy-hosts.json")
	require.NoError(t, os.WriteFile(hostsFile, []byte(`{
  "1": {"name": "Printer", "url": "printer.lan", "category_id": 4},
  "x": {"name": "Bad key", "url": "bad.lan"}
}`), 0o644))

	var out bytes.Buffer
	dbDir := filepath.Join(dir, "db")
	require.NoError(t, run(context.Background(), []string{"import", dbDir, hostsFile}, &out))
	assert.Contains(t, out.String(), "Found 0 categories and 2 hosts")
	assert.Contains(t, out.String(), "Imported 0 categories and 1 hosts")
	assert.Contains(t, out.String(), "Skipped 1 entries")
	assert.Contains(t, out.String(), "Cleared 1 unresolved category references")
}

func TestImportMissingHostsFile(t *testing.T) {
	dbDir := t.TempDir()
	err := run(context.Background(), []string{"import", dbDir, filepath.Join(dbDir, "nope.json")}, &bytes.Buffer{})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dbDir, dbFileName))
}

func TestExportMissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")
	err := run(context.Background(), []string{"export", missing, t.TempDir()}, &bytes.Buffer{})
	require.Error(t, err)
	assert.NoFileExists(t, missing)
}

func TestSummaryLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := database.Connect(database.SQLite, database.SQLiteDSN(path))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	db.Close()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"summary", path}, &out))
	assert.Contains(t, out.String(), "Categories: 0 (table doesn't exist)")
	assert.Contains(t, out.String(), "Hosts: 0 (table doesn't exist)")
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"restore"}},
		{"export missing dir", []string{"export", "a.db"}},
		{"import no args", []string{"import"}},
		{"import s3 with files", []string{"import", "-s3", "backups/x", "db", "hosts.json"}},
		{"summary no file", []string{"summary"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.Error(t, run(context.Background(), tt.args, &out))
			assert.Contains(t, out.String(), "usage:")
		})
	}
}

func TestExportLeavesJournalModeAlone(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := database.Connect(database.SQLite, "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE hosts (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, url TEXT NOT NULL,
		location TEXT, notes TEXT, status TEXT, last_checked TEXT, icon TEXT, category_id INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO hosts (name, url, status, last_checked) VALUES ('nas', 'nas.lan', 'online', 'yesterday')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"export", "-summary", path, t.TempDir()}, &out))
	assert.Contains(t, out.String(), "Exported 0 categories and 1 hosts")

	db, err = database.Connect(database.SQLite, "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "delete", mode)
	assert.NoFileExists(t, path+"-wal")
}
