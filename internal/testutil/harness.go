// Package testutil provides a standardized harness for tests that need a
// real, initialized project on disk.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/project"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Harness holds a freshly initialized temp project, a context carrying a
// debug logger, and the captured log output.
type Harness struct {
	Ctx     context.Context
	Project *project.Project
	Logs    *SafeBuffer
}

// Root returns the resolved project root. Tests should build absolute paths
// from it rather than from t.TempDir(), which may contain symlinks.
func (h *Harness) Root() string { return h.Project.Root }

// Path resolves a project-relative path against the resolved root.
func (h *Harness) Path(rel string) string {
	return filepath.Join(h.Project.Root, filepath.FromSlash(rel))
}

// WriteFile writes a working-tree file, creating parent directories.
func (h *Harness) WriteFile(t *testing.T, rel, content string) {
	t.Helper()
	path := h.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// NewProject initializes a project in a temporary directory and writes the
// given relative-path -> content files into it.
func NewProject(t *testing.T, files map[string]string) *Harness {
	t.Helper()

	logs := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	root := t.TempDir()
	p, err := project.Init(ctx, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	h := &Harness{Ctx: ctx, Project: p, Logs: logs}
	for rel, content := range files {
		h.WriteFile(t, rel, content)
	}
	return h
}
