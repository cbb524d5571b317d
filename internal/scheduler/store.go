package scheduler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nemanja-m/protalign/pkg/core"
)

// TaskStore keeps task bookkeeping. Implementations store and return copies.
type TaskStore interface {
	SaveTask(task *Task) error
	UpdateTask(task *Task) error
	ListTasks() ([]*Task, error)
	Progress(kind core.TaskKind) (Progress, error)
}

type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	order []uuid.UUID
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[uuid.UUID]*Task)}
}

func (s *InMemoryTaskStore) SaveTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = task.clone()
	s.order = append(s.order, task.ID)
	return nil
}

func (s *InMemoryTaskStore) UpdateTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.ID)
	}
	s.tasks[task.ID] = task.clone()
	return nil
}

// ListTasks returns tasks in submission order.
func (s *InMemoryTaskStore) ListTasks() ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.tasks[id].clone())
	}
	return tasks, nil
}

func (s *InMemoryTaskStore) Progress(kind core.TaskKind) (Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var p Progress
	for _, task := range s.tasks {
		if task.Kind != kind {
			continue
		}
		p.Total++
		switch task.Status {
		case TaskStatusPending:
			p.Pending++
		case TaskStatusRunning:
			p.Running++
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed:
			p.Failed++
		}
	}
	return p, nil
}
