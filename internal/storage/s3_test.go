// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"testing"
	"time"
)

func TestNewWithoutEndpoint(t *testing.T) {
	c, err := New("", "us-east-1", "key", "secret", "backups", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil client when endpoint is empty")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New("https://s3.example.com", "us-east-1", "key", "secret", "", ""); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestBackupPrefix(t *testing.T) {
	c, err := New("https://s3.example.com/", "us-east-1", "key", "secret", "backups", "/hostboard/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("EET", 2*3600))

	tests := []struct {
		id   string
		want string
	}{
		{"", "hostboard/backups/20240115T083000Z"},
		{"abc", "hostboard/backups/20240115T083000Z-abc"},
	}
	for _, tt := range tests {
		if got := c.BackupPrefix(at, tt.id); got != tt.want {
			t.Errorf("BackupPrefix(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestObjectURL(t *testing.T) {
	c, err := New("https://s3.example.com/", "us-east-1", "key", "secret", "backups", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := c.ObjectURL("backups/x/hosts.json"), "https://s3.example.com/backups/backups/x/hosts.json"; got != want {
		t.Errorf("ObjectURL = %q, want %q", got, want)
	}
	if c.Bucket() != "backups" {
		t.Errorf("Bucket = %q", c.Bucket())
	}
}
