package project

import (
	"context"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/remote"
	"github.com/oeeckhoutte/dvc/internal/stage"
)

// Push uploads the used cache set to the configured remote with at most jobs
// concurrent transfers.
func (p *Project) Push(ctx context.Context, jobs int) error {
	r, err := remote.New(p.Config.RemoteURL)
	if err != nil {
		return err
	}
	used, err := p.UsedCache(ctx)
	if err != nil {
		return err
	}
	return remote.Transfer(ctx, r, p.Cache, used, jobs, remote.Push)
}

// Pull is two-phase: download the used cache set, then check out every
// stage's outputs so the fetched content becomes visible as working files.
func (p *Project) Pull(ctx context.Context, jobs int) error {
	r, err := remote.New(p.Config.RemoteURL)
	if err != nil {
		return err
	}
	used, err := p.UsedCache(ctx)
	if err != nil {
		return err
	}
	if err := remote.Transfer(ctx, r, p.Cache, used, jobs, remote.Pull); err != nil {
		return err
	}
	return p.Checkout(ctx)
}

// Status compares the used cache set against the remote. It touches neither
// the cache nor the working tree.
func (p *Project) Status(ctx context.Context, jobs int) (map[string]remote.EntryStatus, error) {
	r, err := remote.New(p.Config.RemoteURL)
	if err != nil {
		return nil, err
	}
	used, err := p.UsedCache(ctx)
	if err != nil {
		return nil, err
	}
	return remote.Status(ctx, r, p.Cache, used, jobs)
}

// Checkout materializes every scanned stage's cached outputs into the
// working tree.
func (p *Project) Checkout(ctx context.Context) error {
	stages, err := p.Repo.Scan(ctx)
	if err != nil {
		return err
	}
	for _, s := range stages {
		if err := p.checkoutStage(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Project) checkoutStage(ctx context.Context, s *stage.Stage) error {
	logger := ctxlog.FromContext(ctx).With("stage", s.RelPath())

	for _, out := range s.Outs {
		if !out.UseCache {
			continue
		}
		if out.Checksum == "" {
			logger.Warn("Output was never saved, nothing to check out.", "out", out.Path)
			continue
		}
		if err := p.Cache.Checkout(out.Checksum, s.Abs(out.Path)); err != nil {
			return err
		}
		logger.Debug("Output checked out.", "out", out.Path, "checksum", out.Checksum)
	}
	return nil
}
