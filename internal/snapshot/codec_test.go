package snapshot

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostboard/internal/database"
	"hostboard/internal/models"
	"hostboard/internal/store"
)

// openDB returns an unmigrated SQLite database in a temp directory.
func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Connect(database.SQLite, database.SQLiteDSN(filepath.Join(t.TempDir(), "dashboard.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// testDB returns a migrated SQLite database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openDB(t)
	require.NoError(t, database.Migrate(db, database.SQLite))
	goose.SetBaseFS(nil)
	return db
}

func int64Ptr(v int64) *int64 { return &v }

// seedInventory fills db with two categories and three hosts, one of which
// has no category. Categories are created so that their ids are not 1 and 2.
func seedInventory(t *testing.T, db *sql.DB) (catIDs []int64, hostIDs []int64) {
	t.Helper()
	ctx := context.Background()
	categories := store.NewCategoryStore(db)
	hosts := store.NewHostStore(db)

	// Burn an id so exported ids differ from the ids a fresh import assigns.
	burn, err := categories.Save(ctx, &models.Category{Name: "burn"}, 0)
	require.NoError(t, err)
	require.NoError(t, categories.Delete(ctx, burn))

	for _, c := range []models.Category{
		{Name: "Infrastructure", Description: "core network"},
		{Name: "Media"},
	} {
		id, err := categories.Save(ctx, &c, 0)
		require.NoError(t, err)
		catIDs = append(catIDs, id)
	}

	checked := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	for _, h := range []models.Host{
		{Name: "router", URL: "http://192.168.1.1", Location: "Rack", Notes: "edge\nfirewall", Icon: "1.png", CategoryID: int64Ptr(catIDs[0])},
		{Name: "plex", URL: "plex.lan:32400", CategoryID: int64Ptr(catIDs[1])},
		{Name: "printer", URL: "printer.lan"},
	} {
		id, err := hosts.Save(ctx, &h, 0)
		require.NoError(t, err)
		hostIDs = append(hostIDs, id)
	}
	require.NoError(t, hosts.UpdateStatus(ctx, hostIDs[0], models.StatusOnline, checked))
	return catIDs, hostIDs
}

func TestExportKeysByOriginalID(t *testing.T) {
	db := testDB(t)
	catIDs, hostIDs := seedInventory(t, db)

	snap, err := NewCodec(db, database.SQLite).Export(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Categories, 2)
	require.Len(t, snap.Hosts, 3)

	infra := snap.Categories[strconv.FormatInt(catIDs[0], 10)]
	assert.Equal(t, "Infrastructure", infra.Name)
	assert.Equal(t, "core network", infra.Description)

	router := snap.Hosts[strconv.FormatInt(hostIDs[0], 10)]
	assert.Equal(t, "router", router.Name)
	assert.Equal(t, "online", router.Status)
	assert.Equal(t, "2024-01-15T14:30:00", router.LastChecked)
	require.NotNil(t, router.CategoryID)
	id, ok := router.CategoryID.Int64()
	assert.True(t, ok)
	assert.Equal(t, catIDs[0], id)

	printer := snap.Hosts[strconv.FormatInt(hostIDs[2], 10)]
	assert.Nil(t, printer.CategoryID)
	assert.Empty(t, printer.LastChecked)
}

func TestExportKeepsUnparseableLastChecked(t *testing.T) {
	db := testDB(t)
	_, err := db.Exec(`INSERT INTO hosts (name, url, status, last_checked) VALUES
		('nas', 'nas.lan', 'online', 'yesterday'),
		('tv', 'tv.lan', 'offline', '2024-01-15T14:30:00.123456'),
		('pi', 'pi.lan', 'unknown', '15/01/2024 14:30:00')`)
	require.NoError(t, err)

	snap, err := NewCodec(db, database.SQLite).Export(context.Background())
	require.NoError(t, err)

	got := map[string]string{}
	for _, h := range snap.Hosts {
		got[h.Name] = h.LastChecked
	}
	assert.Equal(t, map[string]string{
		"nas": "yesterday",
		"tv":  "2024-01-15T14:30:00",
		"pi":  "2024-01-15T14:30:00",
	}, got)
}

func TestExportEmptyStore(t *testing.T) {
	snap, err := NewCodec(testDB(t), database.SQLite).Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Categories)
	assert.Empty(t, snap.Hosts)
}

func TestExportMissingTables(t *testing.T) {
	snap, err := NewCodec(openDB(t), database.SQLite).Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Categories)
	assert.Empty(t, snap.Hosts)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testDB(t)
	seedInventory(t, src)

	snap, err := NewCodec(src, database.SQLite).Export(ctx)
	require.NoError(t, err)

	dst := testDB(t)
	res, err := NewCodec(dst, database.SQLite).Import(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Categories)
	assert.Equal(t, 3, res.Hosts)
	assert.Zero(t, res.DroppedRefs)

	want, err := store.NewHostStore(src).List(ctx)
	require.NoError(t, err)
	got, err := store.NewHostStore(dst).List(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.URL, g.URL)
		assert.Equal(t, w.Location, g.Location)
		assert.Equal(t, w.Notes, g.Notes)
		assert.Equal(t, w.Status, g.Status)
		assert.Equal(t, w.Icon, g.Icon)
		assert.Equal(t, w.CategoryName, g.CategoryName, "host %s lost its category", w.Name)
		if w.LastChecked == nil {
			assert.Nil(t, g.LastChecked)
		} else {
			require.NotNil(t, g.LastChecked)
			assert.True(t, w.LastChecked.Equal(*g.LastChecked))
		}
	}

	wantCats, err := store.NewCategoryStore(src).List(ctx)
	require.NoError(t, err)
	gotCats, err := store.NewCategoryStore(dst).List(ctx)
	require.NoError(t, err)
	require.Len(t, gotCats, len(wantCats))
	for i := range wantCats {
		assert.Equal(t, wantCats[i].Name, gotCats[i].Name)
		assert.Equal(t, wantCats[i].Description, gotCats[i].Description)
	}
}

func TestImportRemapsCategoryIDs(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	snap := New()
	snap.Categories["10"] = CategoryEntry{Name: "Ten"}
	snap.Categories["2"] = CategoryEntry{Name: "Two"}
	snap.Hosts["7"] = HostEntry{Name: "a", URL: "a.lan", CategoryID: NewRef(10)}
	snap.Hosts["3"] = HostEntry{Name: "b", URL: "b.lan", CategoryID: &Ref{raw: "2"}}

	res, err := NewCodec(db, database.SQLite).Import(ctx, snap)
	require.NoError(t, err)

	// Categories are inserted in ascending original id: 2 first, then 10.
	assert.Equal(t, int64(1), res.CategoryIDs[2])
	assert.Equal(t, int64(2), res.CategoryIDs[10])
	assert.Equal(t, int64(1), res.HostIDs[3])
	assert.Equal(t, int64(2), res.HostIDs[7])

	a, err := store.NewHostStore(db).FindByID(ctx, res.HostIDs[7])
	require.NoError(t, err)
	require.NotNil(t, a.CategoryID)
	assert.Equal(t, res.CategoryIDs[10], *a.CategoryID)
}

func TestImportDropsUnknownCategoryReference(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	snap := New()
	snap.Categories["1"] = CategoryEntry{Name: "Only"}
	snap.Hosts["1"] = HostEntry{Name: "orphan", URL: "o.lan", CategoryID: NewRef(99)}
	snap.Hosts["2"] = HostEntry{Name: "weird", URL: "w.lan", CategoryID: &Ref{raw: "abc"}}

	res, err := NewCodec(db, database.SQLite).Import(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DroppedRefs)

	for _, oldID := range []int64{1, 2} {
		h, err := store.NewHostStore(db).FindByID(ctx, res.HostIDs[oldID])
		require.NoError(t, err)
		assert.Nil(t, h.CategoryID)
	}
}

func TestImportNormalizesLastChecked(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	snap := New()
	snap.Hosts["1"] = HostEntry{Name: "a", URL: "a.lan", Status: "online", LastChecked: "2024-01-15T14:30:00.123456"}
	snap.Hosts["2"] = HostEntry{Name: "b", URL: "b.lan", Status: "offline", LastChecked: "not-a-date"}
	snap.Hosts["3"] = HostEntry{Name: "c", URL: "c.lan", Status: "asleep"}

	res, err := NewCodec(db, database.SQLite).Import(ctx, snap)
	require.NoError(t, err)

	hosts := store.NewHostStore(db)
	a, err := hosts.FindByID(ctx, res.HostIDs[1])
	require.NoError(t, err)
	require.NotNil(t, a.LastChecked)
	assert.Equal(t, "2024-01-15 14:30:00", a.LastChecked.Format("2006-01-02 15:04:05"))
	assert.Equal(t, models.StatusOnline, a.Status)

	b, err := hosts.FindByID(ctx, res.HostIDs[2])
	require.NoError(t, err)
	assert.Nil(t, b.LastChecked)
	assert.Equal(t, models.StatusOffline, b.Status)

	c, err := hosts.FindByID(ctx, res.HostIDs[3])
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, c.Status)
}

func TestImportSkipsNonNumericKeys(t *testing.T) {
	db := testDB(t)

	snap := New()
	snap.Categories["x"] = CategoryEntry{Name: "bad key"}
	snap.Hosts["1"] = HostEntry{Name: "a", URL: "a.lan"}
	snap.Hosts["two"] = HostEntry{Name: "b", URL: "b.lan"}

	res, err := NewCodec(db, database.SQLite).Import(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Categories)
	assert.Equal(t, 1, res.Hosts)
}

func TestImportRequiresEmptyTarget(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	seedInventory(t, db)

	snap := New()
	snap.Hosts["1"] = HostEntry{Name: "dup", URL: "dup.lan"}

	_, err := NewCodec(db, database.SQLite).Import(ctx, snap)
	assert.ErrorIs(t, err, ErrTargetNotEmpty)

	n, err := store.NewHostStore(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestImportRollsBackOnInvalidEntry(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	snap := New()
	snap.Categories["1"] = CategoryEntry{Name: "Fine"}
	snap.Hosts["1"] = HostEntry{Name: "ok", URL: "ok.lan"}
	snap.Hosts["2"] = HostEntry{Name: "no url"}

	_, err := NewCodec(db, database.SQLite).Import(ctx, snap)
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "url", verr.Field)

	hosts, err := store.NewHostStore(db).Count(ctx)
	require.NoError(t, err)
	categories, err := store.NewCategoryStore(db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, hosts)
	assert.Zero(t, categories)
}
