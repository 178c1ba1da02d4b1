// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"

	"hostboard/internal/models"
)

// CategoryStore manages categories in the database.
type CategoryStore struct {
	db DBTX
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db DBTX) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, description`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var (
		c    models.Category
		desc sql.NullString
	)
	if err := scanner.Scan(&c.ID, &c.Name, &desc); err != nil {
		return nil, err
	}
	c.Description = desc.String
	return &c, nil
}

// List returns all categories ordered by name.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	return s.query(ctx, "list categories", `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`)
}

// ListByID returns all categories in ascending id order.
func (s *CategoryStore) ListByID(ctx context.Context) ([]models.Category, error) {
	return s.query(ctx, "list categories by id", `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
}

func (s *CategoryStore) query(ctx context.Context, op, q string) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	items := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, storageErr("scan category", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return items, nil
}

// FindByID retrieves a category by ID.
func (s *CategoryStore) FindByID(ctx context.Context, id int64) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "category", ID: id}
	}
	if err != nil {
		return nil, storageErr("find category by id", err)
	}
	return c, nil
}

// Save inserts c when id is zero and returns the new id; otherwise it
// overwrites name and description of category id.
func (s *CategoryStore) Save(ctx context.Context, c *models.Category, id int64) (int64, error) {
	name := models.CleanText(c.Name)
	desc := models.CleanText(c.Description)
	if name == "" {
		return 0, &ValidationError{Field: "name", Message: "is required"}
	}

	if id == 0 {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`,
			name, nullString(desc),
		).Scan(&id)
		if err != nil {
			return 0, storageErr("create category", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = $1, description = $2 WHERE id = $3`,
		name, nullString(desc), id,
	)
	if err != nil {
		return 0, storageErr("update category", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, &NotFoundError{Entity: "category", ID: id}
	}
	return id, nil
}

// Delete removes a category by ID. Hosts pointing at it keep their
// category_id; List resolves such references to no category.
func (s *CategoryStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return storageErr("delete category", err)
	}
	return nil
}

// Count returns the number of categories.
func (s *CategoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, storageErr("count categories", err)
	}
	return n, nil
}
