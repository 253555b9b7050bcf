package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oeeckhoutte/dvc/internal/cache"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// seedCache saves content into a fresh cache and returns its checksum.
func seedCache(t *testing.T, c *cache.Cache, content string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "artifact")
	writeFile(t, src, content)
	sum, err := c.Save(src)
	require.NoError(t, err)
	return sum
}

func TestNew(t *testing.T) {
	r, err := New("http://example.com/store")
	require.NoError(t, err)
	assert.IsType(t, &HTTPRemote{}, r)

	r, err = New("/mnt/shared/store")
	require.NoError(t, err)
	assert.IsType(t, &LocalRemote{}, r)

	_, err = New("")
	assert.Error(t, err, "no remote configured")
}

func TestLocalRemoteTransfer(t *testing.T) {
	ctx := context.Background()
	c := cache.New(filepath.Join(t.TempDir(), "cache"))
	remoteDir := filepath.Join(t.TempDir(), "remote")
	r := NewLocalRemote(remoteDir)

	sum := seedCache(t, c, "payload")

	t.Run("push uploads missing entries", func(t *testing.T) {
		require.NoError(t, Transfer(ctx, r, c, []string{sum}, 2, Push))
		ok, err := r.Exists(ctx, sum)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("pull restores a wiped cache", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(c.Dir()))
		require.False(t, c.Has(sum))

		require.NoError(t, Transfer(ctx, r, c, []string{sum}, 2, Pull))
		assert.True(t, c.Has(sum))

		content, err := os.ReadFile(c.Path(sum))
		require.NoError(t, err)
		assert.Equal(t, "payload", string(content))
	})

	t.Run("push of a locally missing entry fails", func(t *testing.T) {
		err := Transfer(ctx, r, c, []string{"0000deadbeef"}, 2, Push)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing locally")
	})

	t.Run("directory entries round-trip", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "dataset")
		writeFile(t, filepath.Join(src, "a.txt"), "a")
		writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")
		dirSum, err := c.Save(src)
		require.NoError(t, err)

		require.NoError(t, Transfer(ctx, r, c, []string{dirSum}, 1, Push))
		require.NoError(t, os.RemoveAll(c.Path(dirSum)))
		require.NoError(t, Transfer(ctx, r, c, []string{dirSum}, 1, Pull))

		content, err := os.ReadFile(filepath.Join(c.Path(dirSum), "sub", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, "b", string(content))
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	c := cache.New(filepath.Join(t.TempDir(), "cache"))
	r := NewLocalRemote(filepath.Join(t.TempDir(), "remote"))

	synced := seedCache(t, c, "synced")
	require.NoError(t, Transfer(ctx, r, c, []string{synced}, 1, Push))

	localOnly := seedCache(t, c, "local only")

	remoteOnly := seedCache(t, c, "remote only")
	require.NoError(t, Transfer(ctx, r, c, []string{remoteOnly}, 1, Push))
	require.NoError(t, os.RemoveAll(c.Path(remoteOnly)))

	nowhere := "ffffffffffffffffffffffffffffffff"

	statuses, err := Status(ctx, r, c, []string{synced, localOnly, remoteOnly, nowhere}, 4)
	require.NoError(t, err)

	assert.Equal(t, StatusInSync, statuses[synced])
	assert.Equal(t, StatusNew, statuses[localOnly])
	assert.Equal(t, StatusDeleted, statuses[remoteOnly])
	assert.Equal(t, StatusMissing, statuses[nowhere])
}

func TestTransferJobsBound(t *testing.T) {
	ctx := context.Background()
	c := cache.New(filepath.Join(t.TempDir(), "cache"))

	var mu sync.Mutex
	inFlight, peak := 0, 0
	r := &slowRemote{
		enter: func() {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
		},
		leave: func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		},
	}

	var sums []string
	for i := 0; i < 8; i++ {
		sums = append(sums, seedCache(t, c, strings.Repeat("x", i+1)))
	}

	require.NoError(t, Transfer(ctx, r, c, sums, 2, Push))
	assert.LessOrEqual(t, peak, 2, "no more than jobs transfers run at once")
}

// slowRemote records fan-out concurrency.
type slowRemote struct {
	enter, leave func()
}

func (r *slowRemote) Upload(ctx context.Context, c *cache.Cache, checksum string) error {
	r.enter()
	defer r.leave()
	time.Sleep(2 * time.Millisecond)
	return nil
}

func (r *slowRemote) Download(ctx context.Context, c *cache.Cache, checksum string) error {
	return nil
}

func (r *slowRemote) Exists(ctx context.Context, checksum string) (bool, error) {
	return false, nil
}

// newObjectStore spins up an in-memory PUT/GET/HEAD object store.
func newObjectStore(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	var objects sync.Map

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := strings.TrimPrefix(req.URL.Path, "/")
		switch req.Method {
		case http.MethodPut:
			body, err := io.ReadAll(req.Body)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			objects.Store(key, string(body))
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet, http.MethodHead:
			val, ok := objects.Load(key)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if req.Method == http.MethodGet {
				_, _ = w.Write([]byte(val.(string)))
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)
	return server, &objects
}

func TestHTTPRemote(t *testing.T) {
	ctx := context.Background()
	server, objects := newObjectStore(t)

	c := cache.New(filepath.Join(t.TempDir(), "cache"))
	r := NewHTTPRemote(server.URL)

	t.Run("file entry round-trip", func(t *testing.T) {
		sum := seedCache(t, c, "http payload")

		ok, err := r.Exists(ctx, sum)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, r.Upload(ctx, c, sum))
		ok, err = r.Exists(ctx, sum)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, os.RemoveAll(c.Path(sum)))
		require.NoError(t, r.Download(ctx, c, sum))
		content, err := os.ReadFile(c.Path(sum))
		require.NoError(t, err)
		assert.Equal(t, "http payload", string(content))
	})

	t.Run("directory entry uses a manifest", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "dataset")
		writeFile(t, filepath.Join(src, "a.txt"), "a")
		writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")
		sum, err := c.Save(src)
		require.NoError(t, err)

		require.NoError(t, r.Upload(ctx, c, sum))
		_, ok := objects.Load(sum + ".dir")
		assert.True(t, ok, "manifest object written")

		ok2, err := r.Exists(ctx, sum)
		require.NoError(t, err)
		assert.True(t, ok2)

		require.NoError(t, os.RemoveAll(c.Path(sum)))
		require.NoError(t, r.Download(ctx, c, sum))
		content, err := os.ReadFile(filepath.Join(c.Path(sum), "sub", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, "b", string(content))
	})
}
