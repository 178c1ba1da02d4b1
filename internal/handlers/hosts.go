// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hostboard/internal/icons"
	"hostboard/internal/models"
	"hostboard/internal/store"
)

// hostRequest is the body of host create and update calls. Status,
// last_checked and icon are managed by the server.
type hostRequest struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Location   string `json:"location"`
	Notes      string `json:"notes"`
	CategoryID *int64 `json:"category_id"`
}

func (req *hostRequest) host() *models.Host {
	return &models.Host{
		Name:       req.Name,
		URL:        req.URL,
		Location:   req.Location,
		Notes:      req.Notes,
		Status:     models.StatusUnknown,
		CategoryID: req.CategoryID,
	}
}

// findHost loads a host with its category name filled in.
func (a *API) findHost(ctx context.Context, id int64) (*models.Host, error) {
	h, err := a.hosts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.CategoryID != nil {
		c, err := a.categories.FindByID(ctx, *h.CategoryID)
		switch {
		case err == nil:
			h.CategoryName = c.Name
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return h, nil
}

// ListHosts returns every host ordered by name.
func (a *API) ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := a.hosts.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
}

// GetHost returns one host.
func (a *API) GetHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := a.findHost(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// CreateHost inserts a host. New hosts start with unknown status.
func (a *API) CreateHost(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	id, err := a.hosts.Save(ctx, req.host(), 0)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	h, err := a.findHost(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	slog.Info("host created", "id", id, "name", h.Name)
	writeJSON(w, http.StatusCreated, h)
}

// UpdateHost replaces the editable fields of a host. The stored icon, status
// and last check time are kept.
func (a *API) UpdateHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req hostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	existing, err := a.hosts.FindByID(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	h := req.host()
	h.Icon = existing.Icon
	if _, err := a.hosts.Save(ctx, h, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	updated, err := a.findHost(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteHost removes a host and its icon. Deleting a missing host succeeds.
func (a *API) DeleteHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	h, err := a.hosts.FindByID(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeStoreError(w, r, err)
		return
	}
	if err := a.hosts.Delete(ctx, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if h != nil && h.Icon != "" {
		if err := a.icons.Remove(h.Icon); err != nil {
			slog.Warn("failed to remove icon", "host_id", id, "icon", h.Icon, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadIcon stores the multipart "icon" file as the host's icon,
// replacing any previous one.
func (a *API) UploadIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	h, err := a.hosts.FindByID(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	// Limit request body to the upload size plus some multipart overhead.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+1024)
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large.")
		return
	}
	file, header, err := r.FormFile("icon")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No icon file provided.")
		return
	}
	defer file.Close()

	name, err := a.icons.Save(id, header.Filename, file, h.Icon)
	switch {
	case errors.Is(err, icons.ErrExtension):
		writeError(w, http.StatusBadRequest, "File type is not allowed.")
		return
	case errors.Is(err, icons.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large.")
		return
	case err != nil:
		writeStoreError(w, r, err)
		return
	}

	h.Icon = name
	if _, err := a.hosts.Save(ctx, h, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	updated, err := a.findHost(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ServeIcon serves a stored icon file.
func (a *API) ServeIcon(w http.ResponseWriter, r *http.Request) {
	p, ok := a.icons.Path(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, p)
}

// OpenHost redirects to the host's address, defaulting to http://.
func (a *API) OpenHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := a.hosts.FindByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if h.URL == "" {
		writeError(w, http.StatusNotFound, "host has no URL")
		return
	}
	http.Redirect(w, r, h.OpenURL(), http.StatusFound)
}

type locationOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Locations lists distinct host locations in the shape select widgets use.
func (a *API) Locations(w http.ResponseWriter, r *http.Request) {
	locations, err := a.hosts.UniqueLocations(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	opts := make([]locationOption, 0, len(locations))
	for _, loc := range locations {
		opts = append(opts, locationOption{Value: loc, Text: loc})
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": opts})
}
