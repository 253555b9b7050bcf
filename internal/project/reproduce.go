package project

import (
	"context"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/dag"
	"github.com/oeeckhoutte/dvc/internal/fsutil"
	"github.com/oeeckhoutte/dvc/internal/stage"
)

// Reproduce re-executes the stages needed to bring target up to date and
// returns them in execution order. Non-recursive mode evaluates only the
// target stage. Recursive mode walks the freshly built graph from the target
// in depth-first postorder, so every producer is evaluated before its
// consumers. A stage the oracle reports unchanged is skipped unless force is
// set.
//
// Reproduction is deliberately sequential: build correctness depends on
// strict postorder visitation.
func (p *Project) Reproduce(ctx context.Context, target string, recursive, force bool) ([]*stage.Stage, error) {
	logger := ctxlog.FromContext(ctx)

	stages, err := p.Repo.Scan(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := dag.Build(ctx, stages)
	if err != nil {
		return nil, err
	}

	node := fsutil.RelTo(p.Root, target)
	if _, ok := graph.Node(node); !ok {
		return nil, &StageNotFoundError{Path: target}
	}
	logger.Debug("Reproducing target.", "target", node, "recursive", recursive, "force", force)

	if !recursive {
		return p.reproduceStage(ctx, graph, node, force)
	}

	var result []*stage.Stage
	for _, id := range graph.PostorderFrom(node) {
		executed, err := p.reproduceStage(ctx, graph, id, force)
		if err != nil {
			// Stages already reproduced stay reproduced; the traversal just
			// stops here.
			return nil, &ReproductionError{Path: id, Err: err}
		}
		result = append(result, executed...)
	}
	return result, nil
}

// reproduceStage evaluates a single node: skip when unchanged (and not
// forced), otherwise execute and persist. Returns the stages actually
// re-executed, which is either empty or exactly one.
func (p *Project) reproduceStage(ctx context.Context, graph *dag.Graph, id string, force bool) ([]*stage.Stage, error) {
	logger := ctxlog.FromContext(ctx)

	s, _ := graph.Node(id)
	changed, err := p.State.Changed(ctx, s)
	if err != nil {
		return nil, err
	}
	if !changed && !force {
		logger.Debug("Stage unchanged, skipping.", "stage", id)
		return nil, nil
	}

	if err := p.Exec.Execute(ctx, s, force); err != nil {
		return nil, err
	}
	if err := s.Dump(); err != nil {
		return nil, err
	}
	return []*stage.Stage{s}, nil
}
