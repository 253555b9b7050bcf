package dag

import (
	"context"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/stage"
)

// Build constructs the dependency graph from scanned stages. Each dependency
// is resolved against the full output index: a resolved producer contributes
// a dependent -> producer edge, an unresolved one is an external leaf input
// and contributes nothing. Cyclic definition sets fail with a CycleError.
func Build(ctx context.Context, stages []*stage.Stage) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	ix := stage.BuildIndex(stages)
	g := New()

	for _, s := range stages {
		id := s.RelPath()
		g.AddNode(id, s)
		for _, dep := range s.Deps {
			producer, ok := ix.Producer(dep.Path)
			if !ok {
				continue
			}
			g.AddNode(producer.RelPath(), producer)
			if err := g.AddEdge(id, producer.RelPath()); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Dependency graph built.", "nodes", g.Len())

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}
