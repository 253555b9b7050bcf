// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesBySuffix recursively searches the given root path for all files
// ending with the specified suffix. Directories named in skipDirs are not
// descended into. filepath.WalkDir visits entries in lexical order, so the
// result is stable across runs.
func FindFilesBySuffix(rootPath string, suffix string, skipDirs ...string) ([]string, error) {
	if suffix == "" {
		panic("suffix must not be empty")
	}

	skip := make(map[string]struct{}, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skipped := skip[d.Name()]; skipped && path != rootPath {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// RelTo normalizes a path to be relative to the given root, with forward
// slashes. It is the single place path relativization happens so every
// component derives the same identity for the same file.
func RelTo(root, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
