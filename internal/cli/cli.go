// Package cli turns command-line arguments into an app.Command.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/oeeckhoutte/dvc/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

const usageText = `dvc - reproducible, cacheable data pipelines.

Usage:
  dvc [options] COMMAND [command options] [ARGS]

Commands:
  init                  Initialize a project in the root directory.
  add PATH              Start tracking a data file or directory.
  remove PATH           Stop tracking an output and delete its stages.
  run [options]         Create a stage from a command and execute it.
  repro TARGET          Reproduce a stage and, recursively, its producers.
  checkout              Materialize cached outputs into the working tree.
  gc                    Delete cache entries no stage references anymore.
  push                  Upload the used cache set to the remote.
  pull                  Download the used cache set and check it out.
  status                Compare the used cache set against the remote.
  pipeline              List the independent pipelines of the project.

Options:
`

// Parse processes command-line arguments. It returns the global config and
// the command to run, a boolean indicating the program should exit cleanly
// (help requested), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, *app.Command, bool, error) {
	flagSet := flag.NewFlagSet("dvc", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usageText)
		flagSet.PrintDefaults()
	}

	rootFlag := flagSet.String("root", ".", "Path to the project root directory.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, nil, true, nil
		}
		return nil, nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, nil, true, nil
	}

	cfg := &app.Config{
		Root:      *rootFlag,
		LogFormat: logFormat,
		LogLevel:  logLevel,
	}

	cmd, exit, err := parseCommand(flagSet.Arg(0), flagSet.Args()[1:], output)
	if err != nil || exit {
		return nil, nil, exit, err
	}
	return cfg, cmd, false, nil
}

// parseCommand parses the per-command flag set.
func parseCommand(name string, args []string, output io.Writer) (*app.Command, bool, error) {
	cmd := &app.Command{Name: name}

	sub := flag.NewFlagSet(name, flag.ContinueOnError)
	sub.SetOutput(output)

	needsTarget := false
	switch name {
	case "init", "checkout", "gc", "pipeline":
		// no command options

	case "add", "remove":
		needsTarget = true

	case "repro":
		sub.BoolVar(&cmd.Recursive, "recursive", true, "Reproduce the target's producers first.")
		sub.BoolVar(&cmd.Force, "force", false, "Re-execute stages even when unchanged.")
		needsTarget = true

	case "run":
		var deps, outs, outsNoCache stringList
		sub.StringVar(&cmd.Cmd, "cmd", "", "Command the stage executes.")
		sub.Var(&deps, "dep", "Input dependency path (repeatable).")
		sub.Var(&outs, "out", "Cached output path (repeatable).")
		sub.Var(&outsNoCache, "out-no-cache", "Uncached output path (repeatable).")
		sub.StringVar(&cmd.Fname, "file", "", "Stage file to create. Derived from the first output when empty.")
		sub.StringVar(&cmd.Wdir, "wdir", "", "Working directory of the command, project-relative.")
		sub.BoolVar(&cmd.NoExec, "no-exec", false, "Persist the stage without executing it.")
		if err := sub.Parse(args); err != nil {
			if err == flag.ErrHelp {
				return nil, true, nil
			}
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		cmd.Deps, cmd.Outs, cmd.OutsNoCache = deps, outs, outsNoCache
		return cmd, false, nil

	case "push", "pull", "status":
		sub.IntVar(&cmd.Jobs, "jobs", 0, "Number of concurrent transfers. 0 uses the project config.")

	default:
		return nil, false, &ExitError{Code: 2, Message: "unknown command: " + name}
	}

	if err := sub.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if cmd.Jobs < 0 {
		return nil, false, &ExitError{Code: 2, Message: "jobs must be a positive integer"}
	}

	if needsTarget {
		if sub.NArg() != 1 {
			return nil, false, &ExitError{Code: 2, Message: name + " expects exactly one path argument"}
		}
		cmd.Target = sub.Arg(0)
	}
	return cmd, false, nil
}
