// Package stage defines the unit of reproducible work: a command, its
// declared input dependencies, and the output artifacts it produces. Stage
// definitions live on disk as HCL files and are reloaded on every scan; the
// filesystem, not the in-memory object, is the system of record.
package stage

import (
	"path/filepath"
	"strings"

	"github.com/oeeckhoutte/dvc/internal/fsutil"
)

// FileSuffix is the naming convention for stage definition files.
const FileSuffix = ".stage.hcl"

// IsStageFile reports whether path follows the stage definition naming
// convention.
func IsStageFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), FileSuffix)
}

// Dependency is a reference to an input path. The path may be produced by
// another stage (resolved later via an Index lookup) or be an external leaf
// file with no producer.
type Dependency struct {
	// Path is project-relative, forward slashes.
	Path string
	// Checksum is the input's content checksum recorded when the stage was
	// last saved. Empty means the stage was never saved.
	Checksum string
}

// Output is a produced artifact.
type Output struct {
	// Path is project-relative, forward slashes.
	Path string
	// UseCache marks the artifact as managed by the content-addressable
	// cache. Non-cached outputs are left in the working tree as-is.
	UseCache bool
	// Checksum is the opaque cache identifier, owned by the cache layer.
	Checksum string
}

// Stage is a unit of reproducible work. Its identity is the definition file
// path relative to the project root: two stages are the same node only if
// their RelPath values coincide.
type Stage struct {
	// Path is the absolute path of the definition file.
	Path string
	// Root is the absolute project root Path is relative to.
	Root string

	// Cmd is the shell command to reproduce the outputs. Empty for stages
	// that only track a file (created by `dvc add`).
	Cmd string
	// Wdir is the command's working directory, project-relative. Empty
	// means the project root.
	Wdir string

	Deps []*Dependency
	Outs []*Output
}

// RelPath returns the stage's identity: its definition file path relative to
// the project root.
func (s *Stage) RelPath() string {
	return fsutil.RelTo(s.Root, s.Path)
}

// WorkDir returns the absolute working directory the stage's command runs in.
func (s *Stage) WorkDir() string {
	if s.Wdir == "" {
		return s.Root
	}
	return filepath.Join(s.Root, filepath.FromSlash(s.Wdir))
}

// Abs resolves a project-relative dep/out path to an absolute one.
func (s *Stage) Abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// Index resolves output paths to the stage producing them. It is rebuilt
// from a fresh scan whenever needed and holds weak references only: deleting
// a stage never leaves a dangling owner link, just a failed lookup.
type Index map[string]*Stage

// BuildIndex maps every output path of every stage to its producing stage.
func BuildIndex(stages []*Stage) Index {
	ix := make(Index)
	for _, s := range stages {
		for _, out := range s.Outs {
			ix[out.Path] = s
		}
	}
	return ix
}

// Producer looks up the stage that produces the given project-relative path.
// The second result is false when the path is an external input no stage
// produces.
func (ix Index) Producer(path string) (*Stage, bool) {
	s, ok := ix[path]
	return s, ok
}
