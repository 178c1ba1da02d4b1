package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"hostboard/internal/database"
	"hostboard/internal/datetime"
	"hostboard/internal/models"
	"hostboard/internal/store"
)

// ErrTargetNotEmpty is returned by Import when the target store already
// holds hosts or categories. Import is a one-shot load into a fresh
// database; running it twice would duplicate everything.
var ErrTargetNotEmpty = errors.New("import target is not empty")

// Codec moves the inventory between a database and a Snapshot. Each
// direction runs as a single transaction.
type Codec struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewCodec returns a codec for db.
func NewCodec(db *sql.DB, dialect database.Dialect) *Codec {
	return &Codec{db: db, dialect: dialect}
}

// ImportResult describes what an Import wrote.
type ImportResult struct {
	Categories int
	Hosts      int
	// CategoryIDs and HostIDs map original snapshot ids to the ids the
	// target store assigned.
	CategoryIDs map[int64]int64
	HostIDs     map[int64]int64
	// Skipped counts entries dropped because their key was not an integer.
	Skipped int
	// DroppedRefs counts host category references that could not be
	// resolved and were cleared.
	DroppedRefs int
}

// Export reads the whole inventory keyed by original id. Missing tables
// produce empty mappings. Categories are read first; a failure there
// aborts before hosts are touched.
func (c *Codec) Export(ctx context.Context) (*Snapshot, error) {
	snap := New()

	err := store.RunInTx(ctx, c.db, func(tx *sql.Tx) error {
		if err := c.exportCategories(ctx, tx, snap); err != nil {
			return fmt.Errorf("export categories: %w", err)
		}
		if err := c.exportHosts(ctx, tx, snap); err != nil {
			return fmt.Errorf("export hosts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("snapshot exported",
		"categories", len(snap.Categories),
		"hosts", len(snap.Hosts),
	)
	return snap, nil
}

func (c *Codec) exportCategories(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	exists, err := database.TableExists(ctx, tx, c.dialect, "categories")
	if err != nil {
		return err
	}
	if !exists {
		slog.Warn("no categories table found, exporting none")
		return nil
	}

	categories, err := store.NewCategoryStore(tx).ListByID(ctx)
	if err != nil {
		return err
	}
	for _, cat := range categories {
		snap.Categories[strconv.FormatInt(cat.ID, 10)] = CategoryEntry{
			Name:        cat.Name,
			Description: cat.Description,
		}
	}
	return nil
}

func (c *Codec) exportHosts(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	exists, err := database.TableExists(ctx, tx, c.dialect, "hosts")
	if err != nil {
		return err
	}
	if !exists {
		slog.Warn("no hosts table found, exporting none")
		return nil
	}

	hosts, err := store.NewHostStore(tx).ListByID(ctx)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		snap.Hosts[strconv.FormatInt(h.ID, 10)] = hostEntry(h)
	}
	return nil
}

// hostEntry converts a stored host into its snapshot form.
func hostEntry(h models.Host) HostEntry {
	e := HostEntry{
		Name:     h.Name,
		URL:      h.URL,
		Location: h.Location,
		Notes:    h.Notes,
		Status:   string(h.Status),
		Icon:     h.Icon,
	}
	if h.LastCheckedText != "" {
		e.LastChecked = datetime.ToISO(h.LastCheckedText)
	}
	if h.CategoryID != nil {
		e.CategoryID = NewRef(*h.CategoryID)
	}
	return e
}

// Import loads snap into an empty store. Categories are inserted first, in
// ascending original id, so the old-to-new id mapping is complete before
// any host is rewritten through it. Unresolvable category references and
// unparseable check times are cleared with a warning. Any other failure
// rolls the whole import back.
func (c *Codec) Import(ctx context.Context, snap *Snapshot) (*ImportResult, error) {
	res := &ImportResult{
		CategoryIDs: make(map[int64]int64),
		HostIDs:     make(map[int64]int64),
	}

	err := store.RunInTx(ctx, c.db, func(tx *sql.Tx) error {
		categories := store.NewCategoryStore(tx)
		hosts := store.NewHostStore(tx)

		if err := ensureEmpty(ctx, categories, hosts); err != nil {
			return err
		}
		if err := importCategories(ctx, categories, snap, res); err != nil {
			return fmt.Errorf("import categories: %w", err)
		}
		if err := importHosts(ctx, hosts, snap, res); err != nil {
			return fmt.Errorf("import hosts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("snapshot imported",
		"categories", res.Categories,
		"hosts", res.Hosts,
		"skipped", res.Skipped,
		"dropped_category_refs", res.DroppedRefs,
	)
	return res, nil
}

func ensureEmpty(ctx context.Context, categories *store.CategoryStore, hosts *store.HostStore) error {
	nc, err := categories.Count(ctx)
	if err != nil {
		return err
	}
	nh, err := hosts.Count(ctx)
	if err != nil {
		return err
	}
	if nc > 0 || nh > 0 {
		return fmt.Errorf("%w: %d categories, %d hosts", ErrTargetNotEmpty, nc, nh)
	}
	return nil
}

func importCategories(ctx context.Context, categories *store.CategoryStore, snap *Snapshot, res *ImportResult) error {
	keys, skipped := sortedIDs(snap.Categories, "category")
	res.Skipped += skipped

	for _, k := range keys {
		entry := snap.Categories[k.key]
		newID, err := categories.Save(ctx, &models.Category{
			Name:        entry.Name,
			Description: entry.Description,
		}, 0)
		if err != nil {
			return fmt.Errorf("category %s: %w", k.key, err)
		}
		res.CategoryIDs[k.id] = newID
		res.Categories++
		slog.Debug("imported category", "name", entry.Name, "old_id", k.id, "new_id", newID)
	}
	return nil
}

func importHosts(ctx context.Context, hosts *store.HostStore, snap *Snapshot, res *ImportResult) error {
	keys, skipped := sortedIDs(snap.Hosts, "host")
	res.Skipped += skipped

	for _, k := range keys {
		entry := snap.Hosts[k.key]
		h := &models.Host{
			Name:     entry.Name,
			URL:      entry.URL,
			Location: entry.Location,
			Notes:    entry.Notes,
			Status:   importStatus(entry.Status, k.key),
			Icon:     entry.Icon,
		}

		if canonical, ok := datetime.Normalize(entry.LastChecked); ok {
			t, err := datetime.ParseCanonical(canonical)
			if err == nil {
				h.LastChecked = &t
			}
		}

		if ref := entry.CategoryID; ref != nil && ref.String() != "" {
			h.CategoryID = resolveCategory(ref, res, k.key)
		}

		newID, err := hosts.Save(ctx, h, 0)
		if err != nil {
			return fmt.Errorf("host %s: %w", k.key, err)
		}
		res.HostIDs[k.id] = newID
		res.Hosts++
		slog.Debug("imported host", "name", h.Name, "old_id", k.id, "new_id", newID)
	}
	return nil
}

// resolveCategory rewrites an original category id through the mapping
// built by importCategories. Unknown ids resolve to nil.
func resolveCategory(ref *Ref, res *ImportResult, hostKey string) *int64 {
	oldID, ok := ref.Int64()
	if !ok {
		slog.Warn("dropping non-numeric category reference", "host", hostKey, "category_id", ref.String())
		res.DroppedRefs++
		return nil
	}
	newID, ok := res.CategoryIDs[oldID]
	if !ok {
		slog.Warn("dropping reference to unknown category", "host", hostKey, "category_id", oldID)
		res.DroppedRefs++
		return nil
	}
	return &newID
}

// importStatus maps a snapshot status onto a known one; anything
// unrecognised becomes unknown.
func importStatus(s, hostKey string) models.Status {
	if s == "" {
		return models.StatusUnknown
	}
	status := models.Status(s)
	if !status.Valid() {
		slog.Warn("unknown host status in snapshot, using unknown", "host", hostKey, "status", s)
		return models.StatusUnknown
	}
	return status
}
