package core

import "fmt"

// MalformedInputError reports dataset or query input that cannot be decoded
// into well-formed records.
type MalformedInputError struct {
	Source string
	Record int
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Record > 0 {
		return fmt.Sprintf("malformed input %s (record %d): %v", e.Source, e.Record, e.Err)
	}
	return fmt.Sprintf("malformed input %s: %v", e.Source, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// ScoringError is returned when the scorer rejects a single record. It fails
// the whole owning task.
type ScoringError struct {
	Split  int
	Record string
	Err    error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring record %q in split %d: %v", e.Record, e.Split, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// TaskFailure is a task that failed permanently after all attempts.
type TaskFailure struct {
	Task     string
	Attempts int
	Err      error
}

func (e *TaskFailure) Error() string {
	return fmt.Sprintf("task %s failed after %d attempt(s): %v", e.Task, e.Attempts, e.Err)
}

func (e *TaskFailure) Unwrap() error { return e.Err }

// AlignmentError reports a structurally invalid consolidation input.
type AlignmentError struct {
	Sequences int
	Err       error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("aligning %d sequence(s): %v", e.Sequences, e.Err)
}

func (e *AlignmentError) Unwrap() error { return e.Err }
