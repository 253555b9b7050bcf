// Package project ties the pieces together: the stage repository, the
// dependency graph, the cache, the staleness oracle and the remote. Every
// operation re-scans the filesystem and rebuilds what it needs — the project
// directory itself is the database, so results always reflect current disk
// state.
package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oeeckhoutte/dvc/internal/cache"
	"github.com/oeeckhoutte/dvc/internal/config"
	"github.com/oeeckhoutte/dvc/internal/executor"
	"github.com/oeeckhoutte/dvc/internal/lock"
	"github.com/oeeckhoutte/dvc/internal/stage"
	"github.com/oeeckhoutte/dvc/internal/state"
)

// MetaDir is the project metadata directory, created by Init. Stage scans
// never descend into it.
const MetaDir = ".dvc"

const (
	configFileName = "config.yaml"
	stateFileName  = "state.yaml"
	lockFileName   = "lock"
	cacheDirName   = "cache"
)

// Project is a handle on an initialized project directory.
type Project struct {
	// Root is the absolute project root.
	Root string
	// DVCDir is Root/.dvc.
	DVCDir string

	Config config.Config
	Cache  *cache.Cache
	State  *state.State
	Repo   *stage.Repository
	Exec   *executor.Executor
}

// Open loads an existing project rooted at root (any directory inside it
// does not work; callers pass the root explicitly). It fails when the
// metadata directory is missing.
func Open(root string) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	dvcDir := filepath.Join(absRoot, MetaDir)
	if !dirExists(dvcDir) {
		return nil, fmt.Errorf("%s is not an initialized project (missing %s directory)", absRoot, MetaDir)
	}

	cfg, err := config.Load(filepath.Join(dvcDir, configFileName))
	if err != nil {
		return nil, err
	}
	st, err := state.Load(filepath.Join(dvcDir, stateFileName))
	if err != nil {
		return nil, err
	}

	c := cache.New(filepath.Join(dvcDir, cacheDirName))
	p := &Project{
		Root:   absRoot,
		DVCDir: dvcDir,
		Config: cfg,
		Cache:  c,
		State:  st,
		Repo:   stage.NewRepository(absRoot, MetaDir, ".git"),
		Exec:   executor.New(c, st),
	}
	return p, nil
}

// Close flushes the checksum memo. It must run after any operation that
// hashed files, or the next run re-hashes everything.
func (p *Project) Close() error {
	return p.State.Flush()
}

// NewLock returns the project's inter-process lock. Mutating commands run
// under it; the core itself takes no locks.
func (p *Project) NewLock() *lock.Lock {
	return lock.New(filepath.Join(p.DVCDir, lockFileName))
}

// UsedCache computes the deduplicated set of cache checksums referenced by
// any cache-enabled output of any stage, in order of first appearance. It is
// recomputed from a fresh scan on every call.
func (p *Project) UsedCache(ctx context.Context) ([]string, error) {
	outs, err := p.Repo.Outputs(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var used []string
	for _, out := range outs {
		if !out.UseCache || out.Checksum == "" {
			continue
		}
		if _, ok := seen[out.Checksum]; ok {
			continue
		}
		seen[out.Checksum] = struct{}{}
		used = append(used, out.Checksum)
	}
	return used, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
