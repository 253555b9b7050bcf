// Package remote synchronizes local cache entries with a remote store.
// Transfers over a set of entries are independent of each other and fan out
// to a bounded number of concurrent workers; everything else in the system
// stays sequential.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/oeeckhoutte/dvc/internal/cache"
	"github.com/oeeckhoutte/dvc/internal/ctxlog"
)

// Direction selects which way a transfer moves cache entries.
type Direction int

const (
	// Push uploads local cache entries to the remote.
	Push Direction = iota
	// Pull downloads remote entries into the local cache.
	Pull
)

func (d Direction) String() string {
	if d == Push {
		return "push"
	}
	return "pull"
}

// EntryStatus describes where a cache entry currently exists.
type EntryStatus int

const (
	// StatusInSync means the entry exists both locally and on the remote.
	StatusInSync EntryStatus = iota
	// StatusNew means the entry exists only locally; a push would upload it.
	StatusNew
	// StatusDeleted means the entry exists only on the remote; a pull would
	// restore it.
	StatusDeleted
	// StatusMissing means the entry exists nowhere; the data is lost unless
	// the producing stage is reproduced.
	StatusMissing
)

func (s EntryStatus) String() string {
	switch s {
	case StatusInSync:
		return "in sync"
	case StatusNew:
		return "new"
	case StatusDeleted:
		return "deleted"
	default:
		return "missing"
	}
}

// Remote stores cache entries addressable by checksum.
type Remote interface {
	// Upload copies a local cache entry to the remote.
	Upload(ctx context.Context, c *cache.Cache, checksum string) error
	// Download copies a remote entry into the local cache.
	Download(ctx context.Context, c *cache.Cache, checksum string) error
	// Exists reports whether the remote holds the entry.
	Exists(ctx context.Context, checksum string) (bool, error)
}

// New constructs a remote from its configured URL. http:// and https:// URLs
// get the HTTP remote; anything else is treated as a filesystem path.
func New(url string) (Remote, error) {
	if url == "" {
		return nil, fmt.Errorf("no remote configured")
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return NewHTTPRemote(url), nil
	}
	return NewLocalRemote(url), nil
}

// Transfer moves the given cache entries in the given direction, running at
// most jobs transfers concurrently. Entries already present on the receiving
// side are skipped. The first failure cancels the remaining transfers and
// fails the whole call; entries transferred before the failure stay put.
func Transfer(ctx context.Context, r Remote, c *cache.Cache, checksums []string, jobs int, direction Direction) error {
	logger := ctxlog.FromContext(ctx)
	if jobs < 1 {
		jobs = 1
	}
	logger.Debug("Starting transfer.", "direction", direction.String(), "entries", len(checksums), "jobs", jobs)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for _, checksum := range checksums {
		checksum := checksum
		g.Go(func() error {
			switch direction {
			case Push:
				if !c.Has(checksum) {
					return fmt.Errorf("cache entry %s missing locally, cannot push", checksum)
				}
				ok, err := r.Exists(ctx, checksum)
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
				if err := r.Upload(ctx, c, checksum); err != nil {
					return fmt.Errorf("failed to push %s: %w", checksum, err)
				}
			case Pull:
				if c.Has(checksum) {
					return nil
				}
				if err := r.Download(ctx, c, checksum); err != nil {
					return fmt.Errorf("failed to pull %s: %w", checksum, err)
				}
			}
			logger.Debug("Entry transferred.", "checksum", checksum, "direction", direction.String())
			return nil
		})
	}

	return g.Wait()
}

// Status compares the given cache entries against the remote, checking at
// most jobs entries concurrently.
func Status(ctx context.Context, r Remote, c *cache.Cache, checksums []string, jobs int) (map[string]EntryStatus, error) {
	if jobs < 1 {
		jobs = 1
	}

	statuses := make(map[string]EntryStatus, len(checksums))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for _, checksum := range checksums {
		checksum := checksum
		g.Go(func() error {
			local := c.Has(checksum)
			onRemote, err := r.Exists(ctx, checksum)
			if err != nil {
				return fmt.Errorf("failed to check %s on remote: %w", checksum, err)
			}

			var st EntryStatus
			switch {
			case local && onRemote:
				st = StatusInSync
			case local:
				st = StatusNew
			case onRemote:
				st = StatusDeleted
			default:
				st = StatusMissing
			}

			mu.Lock()
			statuses[checksum] = st
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}
