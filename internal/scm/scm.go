// Package scm keeps version-control ignore rules in step with the files the
// tool manages: cache content and bookkeeping files never belong in git.
package scm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the ignore file this package manages.
const IgnoreFileName = ".gitignore"

// Ignore appends the given project-relative paths to the ignore file at the
// project root, skipping entries that are already present. The file is
// created if missing.
func Ignore(root string, paths ...string) error {
	ignorePath := filepath.Join(root, IgnoreFileName)

	existing := make(map[string]struct{})
	var lines []string
	if data, err := os.ReadFile(ignorePath); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			existing[strings.TrimSpace(line)] = struct{}{}
			lines = append(lines, line)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", IgnoreFileName, err)
	}

	changed := false
	for _, p := range paths {
		entry := "/" + filepath.ToSlash(p)
		if _, ok := existing[entry]; ok {
			continue
		}
		lines = append(lines, entry)
		existing[entry] = struct{}{}
		changed = true
	}
	if !changed {
		return nil
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(ignorePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", IgnoreFileName, err)
	}
	return nil
}
