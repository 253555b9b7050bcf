package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/fsutil"
	"github.com/oeeckhoutte/dvc/internal/scm"
	"github.com/oeeckhoutte/dvc/internal/stage"
)

// Add starts tracking an existing file or directory: a command-less stage is
// created next to it, the content is saved into the cache, and version
// control is told to ignore the tracked path (the stage file is what gets
// committed).
func (p *Project) Add(ctx context.Context, target string) (*stage.Stage, error) {
	logger := ctxlog.FromContext(ctx)

	rel := fsutil.RelTo(p.Root, target)
	abs := filepath.Join(p.Root, filepath.FromSlash(rel))
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("cannot add %s: %w", target, err)
	}

	s := &stage.Stage{
		Path: abs + stage.FileSuffix,
		Root: p.Root,
		Outs: []*stage.Output{{Path: rel, UseCache: true}},
	}
	if err := p.Exec.Save(ctx, s); err != nil {
		return nil, err
	}
	if err := s.Dump(); err != nil {
		return nil, err
	}
	if err := scm.Ignore(p.Root, rel); err != nil {
		return nil, err
	}

	logger.Info("Now tracking.", "path", rel, "stage", s.RelPath())
	return s, nil
}

// Remove deletes every stage that produces the given output path, along with
// the stages' outputs. Cached content stays until garbage collection.
func (p *Project) Remove(ctx context.Context, target string) ([]*stage.Stage, error) {
	logger := ctxlog.FromContext(ctx)

	rel := fsutil.RelTo(p.Root, target)
	stages, err := p.Repo.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*stage.Stage
	for _, s := range stages {
		for _, out := range s.Outs {
			if out.Path == rel {
				matched = append(matched, s)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, &StageNotFoundError{Path: target}
	}

	for _, s := range matched {
		if err := s.Remove(); err != nil {
			return nil, err
		}
		logger.Info("Stage removed.", "stage", s.RelPath())
	}
	return matched, nil
}

// RunOptions describe a new stage for Run.
type RunOptions struct {
	Cmd         string
	Deps        []string
	Outs        []string
	OutsNoCache []string
	// Fname is the stage definition file to create, relative to the project
	// root. Derived from the first output when empty.
	Fname string
	// Wdir is the command's working directory, project-relative.
	Wdir string
	// NoExec persists the definition without running the command.
	NoExec bool
}

// Run creates a stage from the given options, executes it unless NoExec is
// set, and persists its definition.
func (p *Project) Run(ctx context.Context, opts RunOptions) (*stage.Stage, error) {
	fname := opts.Fname
	if fname == "" {
		if len(opts.Outs) > 0 {
			fname = opts.Outs[0] + stage.FileSuffix
		} else if len(opts.OutsNoCache) > 0 {
			fname = opts.OutsNoCache[0] + stage.FileSuffix
		} else {
			return nil, fmt.Errorf("a stage file name is required when there are no outputs")
		}
	}
	if !stage.IsStageFile(fname) {
		return nil, fmt.Errorf("stage file name must end with %s: %s", stage.FileSuffix, fname)
	}

	s := &stage.Stage{
		Path: filepath.Join(p.Root, filepath.FromSlash(fname)),
		Root: p.Root,
		Cmd:  opts.Cmd,
		Wdir: opts.Wdir,
	}
	for _, d := range opts.Deps {
		s.Deps = append(s.Deps, &stage.Dependency{Path: filepath.ToSlash(d)})
	}
	for _, o := range opts.Outs {
		s.Outs = append(s.Outs, &stage.Output{Path: filepath.ToSlash(o), UseCache: true})
	}
	for _, o := range opts.OutsNoCache {
		s.Outs = append(s.Outs, &stage.Output{Path: filepath.ToSlash(o), UseCache: false})
	}

	if !opts.NoExec {
		if err := p.Exec.Execute(ctx, s, false); err != nil {
			return nil, err
		}
	}
	if err := s.Dump(); err != nil {
		return nil, err
	}
	return s, nil
}
