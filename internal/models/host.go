// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"strings"
	"time"
)

// Status is the last known reachability of a host.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusOnline, StatusOffline:
		return true
	}
	return false
}

// Host is a single tracked network host.
type Host struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Location    string     `json:"location,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Status      Status     `json:"status"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	CategoryID  *int64     `json:"category_id,omitempty"`

	// Virtual field populated by HostStore.List. Empty when the host has no
	// category or its category no longer exists.
	CategoryName string `json:"category_name,omitempty"`

	// LastCheckedText is last_checked exactly as stored, including values
	// that did not parse into LastChecked.
	LastCheckedText string `json:"-"`
}

// Normalize cleans the free-text fields in place.
func (h *Host) Normalize() {
	h.Name = CleanText(h.Name)
	h.URL = CleanText(h.URL)
	h.Location = CleanText(h.Location)
	h.Notes = CleanText(h.Notes)
	if h.Status == "" {
		h.Status = StatusUnknown
	}
}

// OpenURL returns the address a browser should be sent to for this host.
// Bare host names default to plain HTTP.
func (h *Host) OpenURL() string {
	if HasScheme(h.URL) {
		return h.URL
	}
	return "http://" + h.URL
}

// HasScheme reports whether rawURL already starts with http:// or https://.
func HasScheme(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

var textReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "")

// CleanText trims surrounding whitespace, unifies line endings to \n and
// strips NUL bytes.
func CleanText(s string) string {
	return textReplacer.Replace(strings.TrimSpace(s))
}
