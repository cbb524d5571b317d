package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/protalign/pkg/core"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

type Task struct {
	ID     uuid.UUID
	Name   string
	Kind   core.TaskKind
	Status TaskStatus

	SubmittedAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time

	Attempt int
	Errors  []TaskError
}

type TaskError struct {
	Attempt   int
	Error     string
	Timestamp time.Time
}

// Duration is the time from the first attempt's start to the end of the
// last one, or zero while the task is unfinished.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(*t.StartedAt)
}

func (t *Task) clone() *Task {
	cp := *t
	cp.Errors = append([]TaskError(nil), t.Errors...)
	return &cp
}

type Progress struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

func ptrTimeNow() *time.Time {
	t := time.Now().UTC()
	return &t
}
