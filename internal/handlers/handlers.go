// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON API handlers for hostboard. Handlers
// are grouped by concern (hosts, categories, checks, backups) and receive
// their dependencies through the API struct.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hostboard/internal/cache"
	"hostboard/internal/icons"
	"hostboard/internal/middleware"
	"hostboard/internal/probe"
	"hostboard/internal/snapshot"
	"hostboard/internal/storage"
	"hostboard/internal/store"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// API groups all HTTP handlers and their dependencies.
type API struct {
	appName    string
	hosts      *store.HostStore
	categories *store.CategoryStore
	prober     *probe.Prober
	checks     *cache.CheckState
	codec      *snapshot.Codec
	icons      *icons.Dir
	backups    *storage.Client
	maxUpload  int64
}

// NewAPI creates the handler group. checks and backups may be nil when
// Valkey or S3 are not configured.
func NewAPI(appName string, hosts *store.HostStore, categories *store.CategoryStore, prober *probe.Prober, checks *cache.CheckState, codec *snapshot.Codec, iconDir *icons.Dir, backups *storage.Client, maxUpload int64) *API {
	return &API{
		appName:    appName,
		hosts:      hosts,
		categories: categories,
		prober:     prober,
		checks:     checks,
		codec:      codec,
		icons:      iconDir,
		backups:    backups,
		maxUpload:  maxUpload,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store and snapshot errors onto HTTP statuses.
// Unexpected errors are logged and hidden behind a generic 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, snapshot.ErrTargetNotEmpty), errors.Is(err, probe.ErrBatchRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed",
			"request_id", middleware.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decodeJSON reads a JSON body into v, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, answering 400 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
