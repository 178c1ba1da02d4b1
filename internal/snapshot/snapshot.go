// Package snapshot converts the inventory to and from the portable JSON
// file pair (categories.json, hosts.json) used for backup, restore and
// migration between databases.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// File names of the snapshot pair inside a snapshot directory.
const (
	CategoriesFile = "categories.json"
	HostsFile      = "hosts.json"
)

// CategoryEntry is one category in categories.json.
type CategoryEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HostEntry is one host in hosts.json. Absent values are omitted, never
// written as null.
type HostEntry struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Location    string `json:"location,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status,omitempty"`
	LastChecked string `json:"last_checked,omitempty"`
	Icon        string `json:"icon,omitempty"`
	CategoryID  *Ref   `json:"category_id,omitempty"`
}

// Snapshot is the whole inventory keyed by stringified original id.
type Snapshot struct {
	Categories map[string]CategoryEntry `json:"categories"`
	Hosts      map[string]HostEntry     `json:"hosts"`
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		Categories: map[string]CategoryEntry{},
		Hosts:      map[string]HostEntry{},
	}
}

// Ref is a category reference inside a host entry. Older files store it as
// a number, hand-edited ones sometimes as a string; both are accepted and
// validated only when the reference is resolved.
type Ref struct {
	raw string
}

// NewRef returns a reference to id.
func NewRef(id int64) *Ref {
	return &Ref{raw: strconv.FormatInt(id, 10)}
}

// Int64 returns the referenced id, or false if it is not an integer.
func (r *Ref) Int64() (int64, bool) {
	id, err := strconv.ParseInt(r.raw, 10, 64)
	return id, err == nil
}

func (r *Ref) String() string {
	return r.raw
}

// MarshalJSON writes numeric references as JSON numbers.
func (r Ref) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(r.raw, 10, 64); err == nil {
		return []byte(r.raw), nil
	}
	return json.Marshal(r.raw)
}

// UnmarshalJSON accepts a JSON number or string.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		r.raw = strings.TrimSpace(s)
		return nil
	}
	r.raw = string(b)
	return nil
}

// sortedIDs parses the stringified keys of a snapshot mapping and returns
// them in ascending numeric order. Keys that are not integers are logged
// and skipped.
func sortedIDs[V any](entries map[string]V, kind string) ([]idKey, int) {
	keys := make([]idKey, 0, len(entries))
	skipped := 0
	for k := range entries {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			slog.Warn("skipping snapshot entry with non-numeric id", "kind", kind, "id", k)
			skipped++
			continue
		}
		keys = append(keys, idKey{id: id, key: k})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
	return keys, skipped
}

type idKey struct {
	id  int64
	key string
}

// encodeMapping renders a snapshot mapping the way the files are written
// (two-space indent, no HTML escaping) with entries in ascending numeric id
// order, so "2" precedes "10". Keys that are not integers follow in string
// order.
func encodeMapping[V any](entries map[string]V) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("{}\n"), nil
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.ParseInt(strings.TrimSpace(keys[i]), 10, 64)
		b, bErr := strconv.ParseInt(strings.TrimSpace(keys[j]), 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return keys[i] < keys[j]
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("  ", "  ")

	buf.WriteString("{\n")
	for i, k := range keys {
		buf.WriteString("  ")
		if err := enc.Encode(k); err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
		trimNewline(&buf)
		buf.WriteString(": ")
		if err := enc.Encode(entries[k]); err != nil {
			return nil, fmt.Errorf("encode snapshot entry %s: %w", k, err)
		}
		trimNewline(&buf)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func trimNewline(buf *bytes.Buffer) {
	if b := buf.Bytes(); len(b) > 0 && b[len(b)-1] == '\n' {
		buf.Truncate(len(b) - 1)
	}
}
