package remote

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/oeeckhoutte/dvc/internal/cache"
	"github.com/oeeckhoutte/dvc/internal/ctxlog"
)

// dirManifestSuffix marks the object listing the files of a directory cache
// entry. Plain object stores cannot list "directories", so uploads of a
// directory entry write one object per file plus this manifest.
const dirManifestSuffix = ".dir"

// HTTPRemote stores cache entries as objects behind a base URL, one PUT/GET
// per object. It works against anything that accepts dumb PUT/GET/HEAD,
// object-store presigned endpoints included.
type HTTPRemote struct {
	base   string
	client *http.Client
}

// NewHTTPRemote creates a remote for the given base URL.
func NewHTTPRemote(base string) *HTTPRemote {
	return &HTTPRemote{
		base: strings.TrimRight(base, "/"),
		// One shared client so concurrent transfers reuse TCP connections.
		client: &http.Client{},
	}
}

func (r *HTTPRemote) url(key string) string {
	return r.base + "/" + key
}

// Upload sends a cache entry to the remote. File entries become one object;
// directory entries become one object per contained file plus a manifest.
func (r *HTTPRemote) Upload(ctx context.Context, c *cache.Cache, checksum string) error {
	src := c.Path(checksum)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("cache entry %s missing: %w", checksum, err)
	}

	if !info.IsDir() {
		return r.putFile(ctx, checksum, src)
	}

	var manifest []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if err := r.putFile(ctx, checksum+"/"+rel, path); err != nil {
			return err
		}
		manifest = append(manifest, rel)
		return nil
	})
	if err != nil {
		return err
	}
	return r.putBytes(ctx, checksum+dirManifestSuffix, []byte(strings.Join(manifest, "\n")))
}

// Download fetches an entry into the local cache, consulting the directory
// manifest when the entry is not a plain object.
func (r *HTTPRemote) Download(ctx context.Context, c *cache.Cache, checksum string) error {
	dest := c.Path(checksum)
	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return err
	}

	ok, err := r.getFile(ctx, checksum, dest)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Not a plain object; fetch the manifest and every listed file.
	manifest, err := r.getManifest(ctx, checksum)
	if err != nil {
		return err
	}
	for _, rel := range manifest {
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		ok, err := r.getFile(ctx, checksum+"/"+rel, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("remote is missing %s listed in manifest of %s", rel, checksum)
		}
	}
	return nil
}

// Exists reports whether the remote holds the entry, as a plain object or as
// a directory manifest.
func (r *HTTPRemote) Exists(ctx context.Context, checksum string) (bool, error) {
	ok, err := r.head(ctx, checksum)
	if err != nil || ok {
		return ok, err
	}
	return r.head(ctx, checksum+dirManifestSuffix)
}

func (r *HTTPRemote) head(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.url(key), nil)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("remote check of %s failed with status: %s", key, resp.Status)
	}
}

func (r *HTTPRemote) putFile(ctx context.Context, key, path string) error {
	logger := ctxlog.FromContext(ctx)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url(key), file)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = stat.Size()

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("upload of %s failed with status: %s", key, resp.Status)
	}
	logger.Debug("Uploaded object.", "key", key, "size", stat.Size())
	return nil
}

func (r *HTTPRemote) putBytes(ctx context.Context, key string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url(key), strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("upload of %s failed with status: %s", key, resp.Status)
	}
	return nil
}

// getFile downloads one object to path. It returns false without error when
// the object does not exist, so callers can fall back to the manifest.
func (r *HTTPRemote) getFile(ctx context.Context, key, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(key), nil)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download of %s failed with status: %s", key, resp.Status)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, err
	}
	if _, err := out.ReadFrom(resp.Body); err != nil {
		out.Close()
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return false, err
	}
	return true, os.Chmod(path, 0o444)
}

func (r *HTTPRemote) getManifest(ctx context.Context, checksum string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(checksum+dirManifestSuffix), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest of %s: %w", checksum, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entry %s not found on remote (status %s)", checksum, resp.Status)
	}

	var files []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			files = append(files, line)
		}
	}
	return files, scanner.Err()
}
