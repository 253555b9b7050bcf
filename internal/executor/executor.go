// Package executor runs a stage's command and records the fresh state of its
// inputs and outputs afterwards. Execution is strictly sequential; ordering
// across stages is the reproduction engine's job.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/oeeckhoutte/dvc/internal/cache"
	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/stage"
	"github.com/oeeckhoutte/dvc/internal/state"
)

// Executor executes stage commands and saves their results into the cache.
type Executor struct {
	cache *cache.Cache
	state *state.State
}

// New creates an executor backed by the given cache and state.
func New(c *cache.Cache, st *state.State) *Executor {
	return &Executor{cache: c, state: st}
}

// Execute runs the stage's command in its working directory, then saves the
// stage: dependency checksums are recorded, cached outputs are hashed and
// copied into the cache, and the new checksums are written onto the Stage.
// The caller is responsible for persisting the updated definition.
func (e *Executor) Execute(ctx context.Context, s *stage.Stage, force bool) error {
	logger := ctxlog.FromContext(ctx).With("stage", s.RelPath())

	if s.Cmd != "" {
		// Clear previous outputs first: checked-out outputs are read-only and
		// would reject the command's writes otherwise.
		for _, out := range s.Outs {
			if err := os.RemoveAll(s.Abs(out.Path)); err != nil {
				return fmt.Errorf("failed to remove stale output %s: %w", out.Path, err)
			}
		}

		logger.Info("Running stage command.", "cmd", s.Cmd, "force", force)
		cmd := exec.CommandContext(ctx, "sh", "-c", s.Cmd)
		cmd.Dir = s.WorkDir()
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("command %q failed: %w", s.Cmd, err)
		}
	}

	return e.Save(ctx, s)
}

// Save records the current checksums of the stage's dependencies and
// outputs, copying cache-enabled outputs into the content-addressable store.
func (e *Executor) Save(ctx context.Context, s *stage.Stage) error {
	logger := ctxlog.FromContext(ctx).With("stage", s.RelPath())

	for _, dep := range s.Deps {
		sum, err := e.state.Checksum(s.Abs(dep.Path))
		if err != nil {
			return fmt.Errorf("failed to checksum dependency %s: %w", dep.Path, err)
		}
		dep.Checksum = sum
	}

	for _, out := range s.Outs {
		abs := s.Abs(out.Path)
		if _, err := os.Stat(abs); err != nil {
			return fmt.Errorf("output %s was not produced: %w", out.Path, err)
		}
		if out.UseCache {
			sum, err := e.cache.Save(abs)
			if err != nil {
				return fmt.Errorf("failed to cache output %s: %w", out.Path, err)
			}
			out.Checksum = sum
			logger.Debug("Output cached.", "out", out.Path, "checksum", sum)
			continue
		}
		sum, err := e.state.Checksum(abs)
		if err != nil {
			return fmt.Errorf("failed to checksum output %s: %w", out.Path, err)
		}
		out.Checksum = sum
	}

	return nil
}
