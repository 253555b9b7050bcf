// Package cache implements the local content-addressable artifact store.
// Entries live under the project's metadata directory, keyed by content
// checksum, and are kept read-only to prevent accidental mutation of shared
// content.
package cache

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Cache is a flat content-addressable store: one entry per checksum, either
// a single read-only file or a directory tree of read-only files.
type Cache struct {
	dir string
}

// New creates a cache handle over the given directory.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache's root directory.
func (c *Cache) Dir() string { return c.dir }

// Path returns the on-disk location of a cache entry.
func (c *Cache) Path(checksum string) string {
	return filepath.Join(c.dir, checksum)
}

// Has reports whether an entry exists locally.
func (c *Cache) Has(checksum string) bool {
	_, err := os.Stat(c.Path(checksum))
	return err == nil
}

// All enumerates every entry currently in the cache, sorted by checksum.
func (c *Cache) All() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list cache dir %s: %w", c.dir, err)
	}

	sums := make([]string, 0, len(entries))
	for _, e := range entries {
		sums = append(sums, e.Name())
	}
	sort.Strings(sums)
	return sums, nil
}

// Save hashes the file or directory at path and copies it into the cache.
// It returns the entry's checksum. Saving content that is already cached is
// a no-op beyond the hashing.
func (c *Cache) Save(path string) (string, error) {
	checksum, err := HashPath(path)
	if err != nil {
		return "", err
	}
	if c.Has(checksum) {
		return checksum, nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		err = copyTree(path, c.Path(checksum))
	} else {
		err = copyFile(path, c.Path(checksum))
	}
	if err != nil {
		return "", err
	}
	return checksum, nil
}

// Checkout materializes a cache entry at dest, replacing whatever is there.
// Materialized files stay read-only; they are cache-managed content.
func (c *Cache) Checkout(checksum, dest string) error {
	src := c.Path(checksum)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("cache entry %s missing: %w", checksum, err)
	}

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear checkout target %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create checkout dir for %s: %w", dest, err)
	}

	if info.IsDir() {
		return copyTree(src, dest)
	}
	return copyFile(src, dest)
}

// Copy copies a cache entry (file or directory tree) between stores, keeping
// every copied file read-only. Used by remotes that are plain filesystems.
func Copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create parent dir for %s: %w", dst, err)
	}
	if info.IsDir() {
		return copyTree(src, dst)
	}
	return copyFile(src, dst)
}

// copyFile copies src to dst and marks the copy read-only.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return os.Chmod(dst, 0o444)
}

// copyTree copies a directory recursively, read-only file copies throughout.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
