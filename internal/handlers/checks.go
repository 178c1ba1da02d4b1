// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"net/http"

	"hostboard/internal/models"
	"hostboard/internal/probe"
)

type checkResponse struct {
	Success bool `json:"success"`
	*probe.Summary
}

// CheckHost probes one host and returns it with the new status.
func (a *API) CheckHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := a.prober.CheckHost(ctx, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	h, err := a.findHost(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "host": h})
}

// CheckAll probes every host. The batch keeps running if the client goes
// away so the fleet is never left half checked.
func (a *API) CheckAll(w http.ResponseWriter, r *http.Request) {
	sum, err := a.prober.CheckAll(context.WithoutCancel(r.Context()))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Success: true, Summary: sum})
}

// LastCheck returns the most recent bulk check summary, preferring the one
// shared through Valkey.
func (a *API) LastCheck(w http.ResponseWriter, r *http.Request) {
	if a.checks != nil {
		if sum, ok := a.checks.Last(r.Context()); ok {
			writeJSON(w, http.StatusOK, checkResponse{Success: true, Summary: sum})
			return
		}
	}
	if sum, ok := a.prober.Last(); ok {
		writeJSON(w, http.StatusOK, checkResponse{Success: true, Summary: sum})
		return
	}
	writeError(w, http.StatusNotFound, "no bulk check has completed yet")
}

// Summary reports inventory counts for the dashboard header.
func (a *API) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hosts, err := a.hosts.Count(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	categories, err := a.categories.Count(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	byStatus, err := a.hosts.CountByStatus(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	status := map[models.Status]int{
		models.StatusOnline:  byStatus[models.StatusOnline],
		models.StatusOffline: byStatus[models.StatusOffline],
		models.StatusUnknown: hosts - byStatus[models.StatusOnline] - byStatus[models.StatusOffline],
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       a.appName,
		"hosts":      hosts,
		"categories": categories,
		"status":     status,
	})
}
