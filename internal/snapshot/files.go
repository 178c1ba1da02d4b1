package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// LoadDir reads the snapshot pair from dir.
func LoadDir(dir string) (*Snapshot, error) {
	return Load(filepath.Join(dir, HostsFile), filepath.Join(dir, CategoriesFile))
}

// Load reads a snapshot from explicit file paths. The hosts file is
// required. A missing categories file is treated as an empty mapping, since
// early dashboards had no categories at all.
func Load(hostsPath, categoriesPath string) (*Snapshot, error) {
	snap := New()

	if err := readJSON(categoriesPath, &snap.Categories); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		slog.Warn("categories file not found, importing no categories", "path", categoriesPath)
	}

	if err := readJSON(hostsPath, &snap.Hosts); err != nil {
		return nil, err
	}

	if snap.Categories == nil {
		snap.Categories = map[string]CategoryEntry{}
	}
	if snap.Hosts == nil {
		snap.Hosts = map[string]HostEntry{}
	}
	return snap, nil
}

func readJSON(name string, v any) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// Files renders the snapshot pair, keyed by file name.
func (s *Snapshot) Files() (map[string][]byte, error) {
	categories, err := encodeMapping(s.Categories)
	if err != nil {
		return nil, err
	}
	hosts, err := encodeMapping(s.Hosts)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		CategoriesFile: categories,
		HostsFile:      hosts,
	}, nil
}

// WriteDir writes the snapshot pair into dir, creating it if needed.
// Categories are written before hosts; a failure stops the run.
func (s *Snapshot) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	files, err := s.Files()
	if err != nil {
		return err
	}
	for _, name := range []string{CategoriesFile, HostsFile} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, files[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		slog.Info("snapshot file written", "path", p)
	}
	return nil
}

// Uploader stores objects in a bucket. storage.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error
}

// Publish uploads the snapshot pair under prefix in bucket and returns the
// object keys written.
func (s *Snapshot) Publish(ctx context.Context, up Uploader, bucket, prefix string) ([]string, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, name := range []string{CategoriesFile, HostsFile} {
		key := path.Join(prefix, name)
		body := files[name]
		if err := up.Upload(ctx, bucket, key, "application/json", bytes.NewReader(body), int64(len(body))); err != nil {
			return keys, fmt.Errorf("publish %s: %w", name, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Downloader reads objects from a bucket. storage.Client implements it.
type Downloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// Fetch reads a snapshot pair previously written by Publish.
func Fetch(ctx context.Context, dl Downloader, bucket, prefix string) (*Snapshot, error) {
	snap := New()

	categories, err := dl.Download(ctx, bucket, path.Join(prefix, CategoriesFile))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", CategoriesFile, err)
	}
	if err := json.Unmarshal(categories, &snap.Categories); err != nil {
		return nil, fmt.Errorf("parse %s: %w", CategoriesFile, err)
	}

	hosts, err := dl.Download(ctx, bucket, path.Join(prefix, HostsFile))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", HostsFile, err)
	}
	if err := json.Unmarshal(hosts, &snap.Hosts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", HostsFile, err)
	}

	if snap.Categories == nil {
		snap.Categories = map[string]CategoryEntry{}
	}
	if snap.Hosts == nil {
		snap.Hosts = map[string]HostEntry{}
	}
	return snap, nil
}
