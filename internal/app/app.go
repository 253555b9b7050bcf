// Package app wires the CLI surface to the project core: it owns the logger,
// opens the project, takes the inter-process lock around mutating commands
// and dispatches to the right operation.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/oeeckhoutte/dvc/internal/ctxlog"
	"github.com/oeeckhoutte/dvc/internal/project"
)

// Config holds the global options every command shares.
type Config struct {
	// Root is the project root directory.
	Root      string
	LogFormat string // "text" or "json"
	LogLevel  string // "debug", "info", "warn" or "error"
}

// Command is one parsed CLI invocation.
type Command struct {
	// Name selects the operation: init, add, remove, run, repro, checkout,
	// gc, push, pull, status or pipeline.
	Name string

	// Target is the stage file / data path argument of add, remove, repro.
	Target string

	// Reproduction flags.
	Recursive bool
	Force     bool

	// Jobs bounds concurrent remote transfers for push/pull/status.
	// Zero means the project config's value.
	Jobs int

	// Run options.
	Cmd         string
	Deps        []string
	Outs        []string
	OutsNoCache []string
	Fname       string
	Wdir        string
	NoExec      bool
}

// mutating lists the commands that change project state and therefore run
// under the inter-process lock.
var mutating = map[string]bool{
	"add":      true,
	"remove":   true,
	"run":      true,
	"repro":    true,
	"checkout": true,
	"gc":       true,
	"pull":     true,
}

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logW   io.Writer
	logger *slog.Logger
}

// New creates an App with an isolated logger. Command results go to outW;
// logs go to logW.
func New(outW, logW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logW:   logW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, logW),
	}
}

// Run executes one command against the project at cfg.Root.
func (a *App) Run(ctx context.Context, cfg *Config, cmd *Command) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Dispatching command.", "command", cmd.Name, "root", cfg.Root)

	if cmd.Name == "init" {
		p, err := project.Init(ctx, cfg.Root)
		if err != nil {
			return err
		}
		return p.Close()
	}

	p, err := project.Open(cfg.Root)
	if err != nil {
		return err
	}

	if mutating[cmd.Name] {
		lk := p.NewLock()
		if err := lk.Acquire(); err != nil {
			return err
		}
		defer func() {
			if rerr := lk.Release(); rerr != nil {
				a.logger.Error("Failed to release project lock.", "error", rerr)
			}
		}()
	}

	runErr := a.dispatch(ctx, p, cmd)

	// The checksum memo must hit disk even when the command failed halfway;
	// hashes computed before the failure are still valid.
	if cerr := p.Close(); cerr != nil && runErr == nil {
		runErr = cerr
	}
	return runErr
}

func (a *App) dispatch(ctx context.Context, p *project.Project, cmd *Command) error {
	jobs := cmd.Jobs
	if jobs <= 0 {
		jobs = p.Config.Jobs
	}

	switch cmd.Name {
	case "add":
		_, err := p.Add(ctx, cmd.Target)
		return err

	case "remove":
		_, err := p.Remove(ctx, cmd.Target)
		return err

	case "run":
		_, err := p.Run(ctx, project.RunOptions{
			Cmd:         cmd.Cmd,
			Deps:        cmd.Deps,
			Outs:        cmd.Outs,
			OutsNoCache: cmd.OutsNoCache,
			Fname:       cmd.Fname,
			Wdir:        cmd.Wdir,
			NoExec:      cmd.NoExec,
		})
		return err

	case "repro":
		reproduced, err := p.Reproduce(ctx, cmd.Target, cmd.Recursive, cmd.Force)
		if err != nil {
			return err
		}
		if len(reproduced) == 0 {
			a.logger.Info("Pipeline is up to date, nothing to reproduce.")
			return nil
		}
		for _, s := range reproduced {
			fmt.Fprintln(a.outW, s.RelPath())
		}
		return nil

	case "checkout":
		return p.Checkout(ctx)

	case "gc":
		return p.GC(ctx)

	case "push":
		return p.Push(ctx, jobs)

	case "pull":
		return p.Pull(ctx, jobs)

	case "status":
		statuses, err := p.Status(ctx, jobs)
		if err != nil {
			return err
		}
		checksums := make([]string, 0, len(statuses))
		for checksum := range statuses {
			checksums = append(checksums, checksum)
		}
		sort.Strings(checksums)
		for _, checksum := range checksums {
			fmt.Fprintf(a.outW, "%s\t%s\n", checksum, statuses[checksum])
		}
		return nil

	case "pipeline":
		pipelines, err := p.Pipelines(ctx)
		if err != nil {
			return err
		}
		for i, pl := range pipelines {
			fmt.Fprintf(a.outW, "pipeline %d:\n", i+1)
			for _, s := range pl.Stages() {
				fmt.Fprintf(a.outW, "  %s\n", s.RelPath())
			}
		}
		return nil

	default:
		return errors.New("unknown command: " + cmd.Name)
	}
}
