package project

import (
	"context"

	"github.com/oeeckhoutte/dvc/internal/dag"
	"github.com/oeeckhoutte/dvc/internal/stage"
)

// Pipeline is one weakly-connected cluster of stages: a maximal set of
// stages reachable from one another when edge direction is ignored. It is a
// query view over the project, not a unit the engine schedules.
type Pipeline struct {
	project *Project
	graph   *dag.Graph
}

// Project returns the project the pipeline was decomposed from.
func (pl *Pipeline) Project() *Project { return pl.project }

// Graph returns the pipeline's induced subgraph.
func (pl *Pipeline) Graph() *dag.Graph { return pl.graph }

// Stages returns the pipeline's stages in graph insertion order.
func (pl *Pipeline) Stages() []*stage.Stage { return pl.graph.Stages() }

// Pipelines decomposes the full dependency graph into its weakly-connected
// components. Every scanned stage lands in exactly one pipeline.
func (p *Project) Pipelines(ctx context.Context) ([]*Pipeline, error) {
	stages, err := p.Repo.Scan(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := dag.Build(ctx, stages)
	if err != nil {
		return nil, err
	}

	components := graph.Components()
	pipelines := make([]*Pipeline, 0, len(components))
	for _, sub := range components {
		pipelines = append(pipelines, &Pipeline{project: p, graph: sub})
	}
	return pipelines, nil
}
