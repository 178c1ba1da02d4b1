// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Export returns the whole inventory as a snapshot document.
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := a.codec.Export(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	name := "hostboard-" + time.Now().UTC().Format("20060102T150405Z") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	writeJSON(w, http.StatusOK, snap)
}

// Backup exports the inventory and uploads the snapshot pair to S3.
func (a *API) Backup(w http.ResponseWriter, r *http.Request) {
	if a.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "Object storage is not configured.")
		return
	}

	ctx := r.Context()
	snap, err := a.codec.Export(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	runID := uuid.NewString()
	prefix := a.backups.BackupPrefix(time.Now(), runID)
	keys, err := snap.Publish(ctx, a.backups, a.backups.Bucket(), prefix)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	slog.Info("backup uploaded",
		"run_id", runID,
		"bucket", a.backups.Bucket(),
		"prefix", prefix,
		"categories", len(snap.Categories),
		"hosts", len(snap.Hosts),
	)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"run_id":     runID,
		"bucket":     a.backups.Bucket(),
		"keys":       keys,
		"categories": len(snap.Categories),
		"hosts":      len(snap.Hosts),
	})
}
