package project

import "fmt"

// StageNotFoundError means a referenced target does not exist in the scanned
// stage set. It is surfaced immediately and never retried.
type StageNotFoundError struct {
	Path string
}

func (e *StageNotFoundError) Error() string {
	return fmt.Sprintf("stage file %s does not exist", e.Path)
}

// ReproductionError wraps an execution or persistence failure encountered
// mid-traversal. Stages reproduced before the failure are not rolled back;
// the error names the stage whose reproduction failed.
type ReproductionError struct {
	// Path is the failing stage's definition file path, project-relative.
	Path string
	Err  error
}

func (e *ReproductionError) Error() string {
	return fmt.Sprintf("failed to reproduce %s: %s", e.Path, e.Err)
}

func (e *ReproductionError) Unwrap() error { return e.Err }
