package core

import (
	"context"

	"github.com/google/uuid"
)

type TaskKind string

const (
	TaskKindScore  TaskKind = "SCORE"
	TaskKindReduce TaskKind = "REDUCE"
)

// TaskFunc is a unit of work. It must be a pure function of the values it
// captures so that re-running it yields the same candidates.
type TaskFunc func(ctx context.Context) ([]Candidate, error)

type TaskSpec struct {
	Name string
	Kind TaskKind
	Run  TaskFunc
}

// Handle refers to a submitted task.
type Handle struct {
	ID   uuid.UUID
	Name string
}

// Runtime runs independent tasks and delivers their outputs. It may execute
// a task more than once.
type Runtime interface {
	Submit(ctx context.Context, spec TaskSpec) (Handle, error)
	Await(ctx context.Context, h Handle) ([]Candidate, error)
}
