// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"hostboard/internal/models"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListCategories returns every category ordered by name.
func (a *API) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.categories.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// GetCategory returns one category.
func (a *API) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.categories.FindByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCategory inserts a category.
func (a *API) CreateCategory(w http.ResponseWriter, r *http.Request) {
	a.saveCategory(w, r, 0, http.StatusCreated)
}

// UpdateCategory replaces a category's name and description.
func (a *API) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a.saveCategory(w, r, id, http.StatusOK)
}

func (a *API) saveCategory(w http.ResponseWriter, r *http.Request, id int64, status int) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	c := &models.Category{Name: req.Name, Description: req.Description}
	id, err := a.categories.Save(ctx, c, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	saved, err := a.categories.FindByID(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

// DeleteCategory removes a category. Hosts referencing it keep the id.
func (a *API) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.categories.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
