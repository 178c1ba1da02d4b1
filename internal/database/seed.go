package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// demoCategories and demoHosts populate an empty dashboard so a fresh
// install has something to look at. Hosts reference categories by their
// position in demoCategories.
var demoCategories = []struct {
	name, description string
}{
	{"Infrastructure", "Routers, switches and hypervisors"},
	{"Services", "Self-hosted applications"},
}

var demoHosts = []struct {
	name, url, location string
	category            int
}{
	{"Router", "http://192.168.1.1", "Rack", 0},
	{"Proxmox", "https://192.168.1.10:8006", "Rack", 0},
	{"Home Assistant", "homeassistant.local:8123", "Living room", 1},
}

// Seed populates the database with demo data. It is a no-op when any host
// or category already exists.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT (SELECT COUNT(*) FROM categories) + (SELECT COUNT(*) FROM hosts)`).Scan(&count); err != nil {
		return fmt.Errorf("seed check inventory: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(demoCategories))
	for i, c := range demoCategories {
		err := tx.QueryRow(
			`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`,
			c.name, c.description,
		).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("seed insert category %s: %w", c.name, err)
		}
	}

	for _, h := range demoHosts {
		_, err := tx.Exec(
			`INSERT INTO hosts (name, url, location, status, category_id) VALUES ($1, $2, $3, 'unknown', $4)`,
			h.name, h.url, h.location, ids[h.category],
		)
		if err != nil {
			return fmt.Errorf("seed insert host %s: %w", h.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with demo inventory",
		"categories", len(demoCategories),
		"hosts", len(demoHosts),
	)
	return nil
}
