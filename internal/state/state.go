// Package state persists checksum bookkeeping between runs and answers the
// one question reproduction cares about: has this stage changed since it was
// last saved?
package state

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oeeckhoutte/dvc/internal/cache"
	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/stage"
)

// entry memoizes one file's checksum keyed by its stat signature, so
// unchanged files are not re-hashed on every scan.
type entry struct {
	Mtime    int64  `yaml:"mtime"`
	Size     int64  `yaml:"size"`
	Checksum string `yaml:"checksum"`
}

// State is the staleness oracle. It is backed by a yaml memo file under the
// project metadata directory; losing that file costs re-hashing, never
// correctness.
type State struct {
	path    string
	entries map[string]entry
	dirty   bool
}

// Load reads the memo file. A missing file yields an empty, usable state.
func Load(path string) (*State, error) {
	st := &State{path: path, entries: make(map[string]entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &st.entries); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return st, nil
}

// Flush writes the memo back to disk if anything was re-hashed.
func (st *State) Flush() error {
	if !st.dirty {
		return nil
	}
	data, err := yaml.Marshal(st.entries)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", st.path, err)
	}
	st.dirty = false
	return nil
}

// Checksum returns the current content checksum of the file or directory at
// absPath, consulting the memo first. Directories are never memoized; their
// stat signature does not cover contained files.
func (st *State) Checksum(absPath string) (string, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return cache.HashPath(absPath)
	}

	if e, ok := st.entries[absPath]; ok {
		if e.Mtime == info.ModTime().UnixNano() && e.Size == info.Size() {
			return e.Checksum, nil
		}
	}

	sum, err := cache.HashFile(absPath)
	if err != nil {
		return "", err
	}
	st.entries[absPath] = entry{
		Mtime:    info.ModTime().UnixNano(),
		Size:     info.Size(),
		Checksum: sum,
	}
	st.dirty = true
	return sum, nil
}

// Changed reports whether the stage needs re-execution: any dependency whose
// current checksum differs from the recorded one, any missing or modified
// output, or a stage that was never saved at all.
func (st *State) Changed(ctx context.Context, s *stage.Stage) (bool, error) {
	logger := ctxlog.FromContext(ctx).With("stage", s.RelPath())

	for _, dep := range s.Deps {
		if dep.Checksum == "" {
			logger.Debug("Dependency has no recorded checksum.", "dep", dep.Path)
			return true, nil
		}
		sum, err := st.Checksum(s.Abs(dep.Path))
		if err != nil {
			if os.IsNotExist(err) {
				logger.Debug("Dependency missing from working tree.", "dep", dep.Path)
				return true, nil
			}
			return false, fmt.Errorf("failed to checksum dependency %s: %w", dep.Path, err)
		}
		if sum != dep.Checksum {
			logger.Debug("Dependency changed.", "dep", dep.Path)
			return true, nil
		}
	}

	for _, out := range s.Outs {
		if out.Checksum == "" {
			logger.Debug("Output has no recorded checksum.", "out", out.Path)
			return true, nil
		}
		sum, err := st.Checksum(s.Abs(out.Path))
		if err != nil {
			if os.IsNotExist(err) {
				logger.Debug("Output missing from working tree.", "out", out.Path)
				return true, nil
			}
			return false, fmt.Errorf("failed to checksum output %s: %w", out.Path, err)
		}
		if sum != out.Checksum {
			logger.Debug("Output changed.", "out", out.Path)
			return true, nil
		}
	}

	return false, nil
}
