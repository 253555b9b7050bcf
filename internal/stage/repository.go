package stage

import (
	"context"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/fsutil"
)

// Repository scans the project tree for stage definitions. Every call walks
// the filesystem again: the scan result is never cached, so it always
// reflects the current on-disk state.
type Repository struct {
	root     string
	skipDirs []string
}

// NewRepository creates a repository rooted at the project root. Directories
// named in skipDirs (the project's own metadata directory, VCS internals)
// are excluded from scans.
func NewRepository(root string, skipDirs ...string) *Repository {
	return &Repository{root: root, skipDirs: skipDirs}
}

// Scan walks the whole project tree and loads every stage definition found.
// A single malformed definition fails the scan with a LoadError naming it.
func (r *Repository) Scan(ctx context.Context) ([]*Stage, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesBySuffix(r.root, FileSuffix, r.skipDirs...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Stage scan complete.", "count", len(files))

	stages := make([]*Stage, 0, len(files))
	for _, path := range files {
		s, err := Load(r.root, path)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Outputs flattens the outputs of every scanned stage, in scan order.
func (r *Repository) Outputs(ctx context.Context) ([]*Output, error) {
	stages, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var outs []*Output
	for _, s := range stages {
		outs = append(outs, s.Outs...)
	}
	return outs, nil
}
