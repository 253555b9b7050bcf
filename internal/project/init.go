package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oeeckhoutte/dvc/internal/config"
	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/scm"
)

// Init initializes a new project in root: creates the metadata directory,
// the default config and the cache directory, and tells version control to
// ignore the tool's bookkeeping files.
func Init(ctx context.Context, root string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	dvcDir := filepath.Join(absRoot, MetaDir)
	if dirExists(dvcDir) {
		return nil, fmt.Errorf("%s is already initialized", absRoot)
	}

	if err := os.MkdirAll(filepath.Join(dvcDir, cacheDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := config.Default().Save(filepath.Join(dvcDir, configFileName)); err != nil {
		return nil, err
	}

	ignored := []string{
		filepath.Join(MetaDir, cacheDirName),
		filepath.Join(MetaDir, stateFileName),
		filepath.Join(MetaDir, lockFileName),
	}
	if err := scm.Ignore(absRoot, ignored...); err != nil {
		return nil, err
	}

	logger.Info("Initialized project.", "root", absRoot)
	return Open(absRoot)
}
