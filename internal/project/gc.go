package project

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/fsutil"
)

// GC deletes every cache entry not referenced by any cache-enabled output of
// the current stage set. The used set is computed to completion from a fresh
// scan before the first deletion, so an entry still referenced is never
// removed. A deletion failure aborts the collect; skipping would silently
// leave stale cache data behind.
func (p *Project) GC(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	used, err := p.UsedCache(ctx)
	if err != nil {
		return err
	}
	usedSet := make(map[string]struct{}, len(used))
	for _, checksum := range used {
		usedSet[checksum] = struct{}{}
	}

	all, err := p.Cache.All()
	if err != nil {
		return err
	}

	for _, checksum := range all {
		if _, ok := usedSet[checksum]; ok {
			continue
		}
		path := p.Cache.Path(checksum)
		if err := removeCacheEntry(path); err != nil {
			return fmt.Errorf("failed to remove cache entry %s: %w", checksum, err)
		}
		logger.Info(fmt.Sprintf("'%s' was removed", fsutil.RelTo(p.Root, path)))
	}
	return nil
}

// removeCacheEntry deletes one cache entry. Cached files are stored
// read-only, so each file has its write bit restored before the unlink.
// Directory entries are cleared bottom-up: files first, then the now-empty
// directories deepest-first.
func removeCacheEntry(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return removeCacheFile(path)
	}

	var dirs []string
	err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, sub)
			return nil
		}
		return removeCacheFile(sub)
	})
	if err != nil {
		return err
	}

	// WalkDir lists parents before children; deleting in reverse removes
	// each directory only after its contents are gone.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			return err
		}
	}
	return nil
}

func removeCacheFile(path string) error {
	if err := os.Chmod(path, 0o644); err != nil {
		return err
	}
	return os.Remove(path)
}
