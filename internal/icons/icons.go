// Package icons stores host icons in a local directory. An icon for host 7
// uploaded as "Router.PNG" is kept as "7.png" and served by that name.
package icons

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrExtension is returned for files whose extension is not whitelisted.
	ErrExtension = errors.New("file type is not allowed")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("file is too large")
)

// Dir is an icon directory.
type Dir struct {
	root     string
	allowed  map[string]bool
	maxBytes int64
}

// Open returns the icon directory at root, creating it if needed.
// extensions are compared case-insensitively without the leading dot.
// maxBytes <= 0 disables the size limit.
func Open(root string, extensions []string, maxBytes int64) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create icons dir: %w", err)
	}
	allowed := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return &Dir{root: root, allowed: allowed, maxBytes: maxBytes}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// Allowed reports whether filename has a whitelisted extension.
func (d *Dir) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && d.allowed[ext]
}

// Name returns the stored name of an icon for hostID uploaded as filename.
func Name(hostID int64, filename string) string {
	return strconv.FormatInt(hostID, 10) + strings.ToLower(filepath.Ext(filename))
}

// Save writes the icon read from r for hostID and returns its stored name.
// oldIcon, when set and different from the new name, is removed once the
// new file is in place.
func (d *Dir) Save(hostID int64, filename string, r io.Reader, oldIcon string) (string, error) {
	if !d.Allowed(filename) {
		return "", ErrExtension
	}
	name := Name(hostID, filename)

	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp icon: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if d.maxBytes > 0 {
		src = io.LimitReader(r, d.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write icon: %w", err)
	}
	if d.maxBytes > 0 && n > d.maxBytes {
		return "", ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), filepath.Join(d.root, name)); err != nil {
		return "", fmt.Errorf("store icon: %w", err)
	}
	if oldIcon != "" && oldIcon != name {
		if err := d.Remove(oldIcon); err != nil {
			slog.Warn("failed to remove old icon", "icon", oldIcon, "error", err)
		}
	}
	return name, nil
}

// Remove deletes an icon. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	p, ok := d.Path(name)
	if !ok {
		return fmt.Errorf("invalid icon name %q", name)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the file path of a stored icon. Names that would escape the
// directory are rejected.
func (d *Dir) Path(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(d.root, name), true
}
