package stage

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Dump persists the stage's current definition and recorded output state to
// its definition file. Dump is the durable half of reproduction: a stage is
// only considered reproduced once its new checksums are on disk.
func (s *Stage) Dump() error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	if s.Cmd != "" {
		body.SetAttributeValue("cmd", cty.StringVal(s.Cmd))
	}
	if s.Wdir != "" && s.Wdir != "." {
		body.SetAttributeValue("wdir", cty.StringVal(s.Wdir))
	}

	for _, d := range s.Deps {
		body.AppendNewline()
		blk := body.AppendNewBlock("dep", nil).Body()
		blk.SetAttributeValue("path", cty.StringVal(d.Path))
		if d.Checksum != "" {
			blk.SetAttributeValue("checksum", cty.StringVal(d.Checksum))
		}
	}

	for _, o := range s.Outs {
		body.AppendNewline()
		blk := body.AppendNewBlock("out", nil).Body()
		blk.SetAttributeValue("path", cty.StringVal(o.Path))
		if !o.UseCache {
			blk.SetAttributeValue("cache", cty.BoolVal(false))
		}
		if o.Checksum != "" {
			blk.SetAttributeValue("checksum", cty.StringVal(o.Checksum))
		}
	}

	if err := os.WriteFile(s.Path, f.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write stage file %s: %w", s.Path, err)
	}
	return nil
}

// Remove deletes the stage's definition file and its outputs from the
// working tree. Cached copies of the outputs are untouched; reclaiming them
// is garbage collection's job.
func (s *Stage) Remove() error {
	for _, out := range s.Outs {
		if err := os.RemoveAll(s.Abs(out.Path)); err != nil {
			return fmt.Errorf("failed to remove output %s: %w", out.Path, err)
		}
	}
	if err := os.Remove(s.Path); err != nil {
		return fmt.Errorf("failed to remove stage file %s: %w", s.Path, err)
	}
	return nil
}
