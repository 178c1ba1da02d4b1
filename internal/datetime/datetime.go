// Package datetime converts the timestamp spellings found in older host
// snapshots into the single canonical form stored in the database.
package datetime

import (
	"log/slog"
	"strings"
	"time"
)

// Canonical is the storage layout for host check times: no zone, second
// precision.
const Canonical = "2006-01-02 15:04:05"

// ISO is the snapshot layout written on export.
const ISO = "2006-01-02T15:04:05"

// isoLayouts are tried for inputs carrying a 'T' date/time separator.
// Fractional seconds are accepted by time.Parse even when the layout does
// not name them.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
}

// plainLayouts are tried, in order, for everything else. Canonical also
// matches canonical-with-fraction.
var plainLayouts = []string{
	Canonical,
	"2006-01-02",
	"02/01/2006 15:04:05",
}

// Parse tries every accepted layout in order and returns the first match.
// Zone information is kept on the returned time but Format drops it.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	layouts := plainLayouts
	if strings.Contains(s, "T") {
		layouts = isoLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize rewrites s into Canonical. Unparseable input is logged as a
// warning and yields ok == false; empty input yields ok == false silently.
// Callers treat a false result as "no known check time".
func Normalize(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	t, ok := Parse(s)
	if !ok {
		slog.Warn("could not parse datetime, dropping it", "value", s)
		return "", false
	}
	return Format(t), true
}

// Format renders t in Canonical using its own wall clock.
func Format(t time.Time) string {
	return t.Format(Canonical)
}

// ParseCanonical parses a value previously written with Format.
func ParseCanonical(s string) (time.Time, error) {
	return time.Parse(Canonical, s)
}

// ToISO converts a stored value in any accepted layout to the snapshot
// layout. Values that do not parse are returned unchanged.
func ToISO(s string) string {
	t, ok := Parse(s)
	if !ok {
		return s
	}
	return t.Format(ISO)
}
