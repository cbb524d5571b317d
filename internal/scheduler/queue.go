package scheduler

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/nemanja-m/protalign/pkg/core"
)

// ErrQueueEmpty is returned by Pop on an empty queue.
var ErrQueueEmpty = errors.New("task queue is empty")

// TaskQueue orders pending tasks by kind: every queued score task is served
// before any reduce task. Tasks of the same kind are served in FIFO order,
// and a retried task joins the back of its kind.
type TaskQueue interface {
	Push(task *Task) error
	Pop() (*Task, error)
	Len() int
}

// rank is the urgency of a task kind; lower runs first.
type rank int

const (
	rankScore rank = iota
	rankOther
	rankReduce
)

func rankOf(kind core.TaskKind) rank {
	switch kind {
	case core.TaskKindScore:
		return rankScore
	case core.TaskKindReduce:
		return rankReduce
	default:
		return rankOther
	}
}

type heapTaskQueue struct {
	mu       sync.Mutex
	entries  entryHeap
	sequence uint64
}

func NewTaskQueue() TaskQueue {
	return &heapTaskQueue{}
}

func (q *heapTaskQueue) Push(task *Task) error {
	if task == nil {
		return errors.New("cannot push nil task")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.entries, entry{task: task, rank: rankOf(task.Kind), sequence: q.sequence})
	q.sequence++
	return nil
}

func (q *heapTaskQueue) Pop() (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, ErrQueueEmpty
	}
	return heap.Pop(&q.entries).(entry).task, nil
}

func (q *heapTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type entry struct {
	task     *Task
	rank     rank
	sequence uint64
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].sequence < h[j].sequence
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
