// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hostboard/internal/datetime"
	"hostboard/internal/models"
)

// HostStore manages hosts in the database.
type HostStore struct {
	db DBTX
}

// NewHostStore returns a new HostStore.
func NewHostStore(db DBTX) *HostStore {
	return &HostStore{db: db}
}

const hostColumns = `h.id, h.name, h.url, h.location, h.notes, h.status, h.last_checked, h.icon, h.category_id`

// scanHost scans the hostColumns (plus any extra destinations) into a Host.
func scanHost(scanner interface{ Scan(...any) error }, extra ...any) (*models.Host, error) {
	var (
		h                     models.Host
		location, notes, icon sql.NullString
		status, lastChecked   sql.NullString
		categoryID            sql.NullInt64
	)
	dest := append([]any{
		&h.ID, &h.Name, &h.URL, &location, &notes,
		&status, &lastChecked, &icon, &categoryID,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	h.Location = location.String
	h.Notes = notes.String
	h.Icon = icon.String
	h.Status = models.Status(status.String)
	if !h.Status.Valid() {
		h.Status = models.StatusUnknown
	}
	if lastChecked.Valid {
		h.LastCheckedText = lastChecked.String
		// Rows written by other tools may carry any accepted spelling.
		if t, ok := datetime.Parse(lastChecked.String); ok {
			h.LastChecked = &t
		}
	}
	if categoryID.Valid {
		id := categoryID.Int64
		h.CategoryID = &id
	}
	return &h, nil
}

// List returns all hosts ordered by name, each carrying the name of its
// category. Dangling category references leave CategoryName empty.
func (s *HostStore) List(ctx context.Context) ([]models.Host, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+hostColumns+`, c.name
		FROM hosts h
		LEFT JOIN categories c ON h.category_id = c.id
		ORDER BY h.name, h.id
	`)
	if err != nil {
		return nil, storageErr("list hosts", err)
	}
	defer rows.Close()

	items := []models.Host{}
	for rows.Next() {
		var categoryName sql.NullString
		h, err := scanHost(rows, &categoryName)
		if err != nil {
			return nil, storageErr("scan host", err)
		}
		h.CategoryName = categoryName.String
		items = append(items, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list hosts", err)
	}
	return items, nil
}

// ListByID returns all hosts in ascending id order without the category
// join. Used for snapshot export.
func (s *HostStore) ListByID(ctx context.Context) ([]models.Host, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+hostColumns+` FROM hosts h ORDER BY h.id`)
	if err != nil {
		return nil, storageErr("list hosts by id", err)
	}
	defer rows.Close()

	items := []models.Host{}
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, storageErr("scan host", err)
		}
		items = append(items, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list hosts by id", err)
	}
	return items, nil
}

// FindByID retrieves a host by ID.
func (s *HostStore) FindByID(ctx context.Context, id int64) (*models.Host, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hostColumns+` FROM hosts h WHERE h.id = $1`, id)
	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "host", ID: id}
	}
	if err != nil {
		return nil, storageErr("find host by id", err)
	}
	return h, nil
}

// validateHost normalizes h in place and checks required fields.
func validateHost(h *models.Host) error {
	h.Normalize()
	if h.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if h.URL == "" {
		return &ValidationError{Field: "url", Message: "is required"}
	}
	if !h.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown value %q", h.Status)}
	}
	return nil
}

// Save inserts h when id is zero and returns the new id. Otherwise it
// overwrites name, url, location, notes, icon and category of host id with
// the values in h; status and last_checked belong to UpdateStatus and are
// only honoured on insert.
func (s *HostStore) Save(ctx context.Context, h *models.Host, id int64) (int64, error) {
	if err := validateHost(h); err != nil {
		return 0, err
	}

	if id == 0 {
		var lastChecked any
		if h.LastChecked != nil {
			lastChecked = datetime.Format(*h.LastChecked)
		}
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO hosts (name, url, location, notes, status, last_checked, icon, category_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			h.Name, h.URL, nullString(h.Location), nullString(h.Notes),
			string(h.Status), lastChecked, nullString(h.Icon), nullInt64(h.CategoryID),
		).Scan(&id)
		if err != nil {
			return 0, storageErr("create host", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE hosts SET
			name = $1, url = $2, location = $3, notes = $4, icon = $5, category_id = $6
		WHERE id = $7`,
		h.Name, h.URL, nullString(h.Location), nullString(h.Notes),
		nullString(h.Icon), nullInt64(h.CategoryID), id,
	)
	if err != nil {
		return 0, storageErr("update host", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, &NotFoundError{Entity: "host", ID: id}
	}
	return id, nil
}

// Delete removes a host by ID. Deleting a missing host is not an error.
func (s *HostStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hosts WHERE id = $1`, id); err != nil {
		return storageErr("delete host", err)
	}
	return nil
}

// UpdateStatus records a reachability result. It touches nothing but
// status and last_checked.
func (s *HostStore) UpdateStatus(ctx context.Context, id int64, status models.Status, checkedAt time.Time) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown value %q", status)}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE hosts SET status = $1, last_checked = $2 WHERE id = $3`,
		string(status), datetime.Format(checkedAt), id,
	)
	if err != nil {
		return storageErr("update host status", err)
	}
	return nil
}

// UniqueLocations returns the distinct non-empty locations in ascending order.
func (s *HostStore) UniqueLocations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT location
		FROM hosts
		WHERE location IS NOT NULL AND location != ''
		ORDER BY location
	`)
	if err != nil {
		return nil, storageErr("list locations", err)
	}
	defer rows.Close()

	locations := []string{}
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, storageErr("scan location", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list locations", err)
	}
	return locations, nil
}

// Count returns the number of hosts.
func (s *HostStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hosts`).Scan(&n); err != nil {
		return 0, storageErr("count hosts", err)
	}
	return n, nil
}

// CountByStatus returns how many hosts are in each status.
func (s *HostStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM hosts GROUP BY status`)
	if err != nil {
		return nil, storageErr("count hosts by status", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status sql.NullString
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storageErr("scan status count", err)
		}
		counts[models.Status(status.String)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("count hosts by status", err)
	}
	return counts, nil
}
