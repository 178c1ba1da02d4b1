// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Every test gets its own SQLite file and icon directory.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"hostboard/internal/database"
	"hostboard/internal/icons"
	"hostboard/internal/models"
	"hostboard/internal/probe"
	"hostboard/internal/snapshot"
	"hostboard/internal/store"
)

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	DB         *sql.DB
	Hosts      *store.HostStore
	Categories *store.CategoryStore
	Prober     *probe.Prober
	Icons      *icons.Dir
	API        *API
}

// newTestEnv creates a complete test environment backed by a fresh SQLite
// database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Connect(database.SQLite, database.SQLiteDSN(filepath.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, database.SQLite))

	iconDir, err := icons.Open(filepath.Join(dir, "icons"), []string{"png", "svg"}, 1<<20)
	require.NoError(t, err)

	hosts := store.NewHostStore(db)
	categories := store.NewCategoryStore(db)
	prober := probe.New(hosts, time.Second, probe.WithWorkers(4))
	codec := snapshot.NewCodec(db, database.SQLite)

	return &testEnv{
		DB:         db,
		Hosts:      hosts,
		Categories: categories,
		Prober:     prober,
		Icons:      iconDir,
		API:        NewAPI("Test Board", hosts, categories, prober, nil, codec, iconDir, nil, 1<<20),
	}
}

// createHost inserts a host directly through the store.
func (e *testEnv) createHost(t *testing.T, h models.Host) int64 {
	t.Helper()
	id, err := e.Hosts.Save(context.Background(), &h, 0)
	require.NoError(t, err)
	return id
}

// createCategory inserts a category directly through the store.
func (e *testEnv) createCategory(t *testing.T, name string) int64 {
	t.Helper()
	id, err := e.Categories.Save(context.Background(), &models.Category{Name: name}, 0)
	require.NoError(t, err)
	return id
}

// withChiURLParam adds chi URL parameters (key, value pairs) to a request.
func withChiURLParam(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// call runs handler h with an optional JSON body and chi URL params.
func call(t *testing.T, h http.HandlerFunc, method, target string, body any, params ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(params) > 0 {
		req = withChiURLParam(req, params...)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// decode unmarshals a recorder body into a value of type T.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}
