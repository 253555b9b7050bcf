package remote

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oeeckhoutte/dvc/internal/cache"
)

// LocalRemote is a remote backed by a plain directory: a shared drive, a
// mounted bucket, or just another folder. Entries keep the same flat
// checksum layout the local cache uses.
type LocalRemote struct {
	dir string
}

// NewLocalRemote creates a directory-backed remote.
func NewLocalRemote(dir string) *LocalRemote {
	return &LocalRemote{dir: dir}
}

func (r *LocalRemote) path(checksum string) string {
	return filepath.Join(r.dir, checksum)
}

// Upload copies a cache entry into the remote directory.
func (r *LocalRemote) Upload(ctx context.Context, c *cache.Cache, checksum string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	return cache.Copy(c.Path(checksum), r.path(checksum))
}

// Download copies an entry from the remote directory into the local cache.
func (r *LocalRemote) Download(ctx context.Context, c *cache.Cache, checksum string) error {
	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return err
	}
	return cache.Copy(r.path(checksum), c.Path(checksum))
}

// Exists reports whether the remote directory holds the entry.
func (r *LocalRemote) Exists(ctx context.Context, checksum string) (bool, error) {
	_, err := os.Stat(r.path(checksum))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
