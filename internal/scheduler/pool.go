package scheduler

import (
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("pool closed")

type Job func()

// Pool runs submitted jobs on a fixed number of goroutines.
type Pool struct {
	size int
	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(size int) *Pool {
	return &Pool{
		size: max(size, 1),
		jobs: make(chan Job),
	}
}

func (p *Pool) Start() {
	for range p.size {
		p.wg.Go(func() {
			for job := range p.jobs {
				job()
			}
		})
	}
}

// Submit blocks until a pool goroutine accepts the job.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.jobs <- job
	return nil
}

// Close stops accepting jobs and waits for running ones to return.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
