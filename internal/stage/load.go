package stage

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// LoadError reports a stage definition that could not be parsed or decoded.
// It aborts the whole scan; the repository does not partially recover.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load stage file %s: %s", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// fileRoot mirrors the on-disk HCL schema of a stage definition.
type fileRoot struct {
	Cmd  string      `hcl:"cmd,optional"`
	Wdir string      `hcl:"wdir,optional"`
	Deps []*depBlock `hcl:"dep,block"`
	Outs []*outBlock `hcl:"out,block"`
}

type depBlock struct {
	Path     string `hcl:"path"`
	Checksum string `hcl:"checksum,optional"`
}

type outBlock struct {
	Path     string `hcl:"path"`
	Cache    *bool  `hcl:"cache,optional"` // defaults to true
	Checksum string `hcl:"checksum,optional"`
}

// Load parses a single stage definition file into a Stage.
func Load(root, path string) (*Stage, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, &LoadError{Path: path, Err: diags}
	}

	var raw fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, &LoadError{Path: path, Err: diags}
	}

	s := &Stage{
		Path: path,
		Root: root,
		Cmd:  raw.Cmd,
		Wdir: raw.Wdir,
	}
	for _, d := range raw.Deps {
		s.Deps = append(s.Deps, &Dependency{Path: d.Path, Checksum: d.Checksum})
	}
	for _, o := range raw.Outs {
		useCache := true
		if o.Cache != nil {
			useCache = *o.Cache
		}
		s.Outs = append(s.Outs, &Output{Path: o.Path, UseCache: useCache, Checksum: o.Checksum})
	}
	return s, nil
}
