package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type task struct {
	seq int
	job Job
}

type done struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of workers and returns results in submission order.
// A collector goroutine drains results while jobs are still being submitted, so
// Submit never waits on result consumption.
type Pool struct {
	workers    int
	jobQueue   chan task
	results    chan done
	collected  []Result
	collectWG  sync.WaitGroup
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
	next       int
	closed     bool
	closeOnce  sync.Once
}

// NewPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan task, workers*2),
		results:    make(chan done, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go p.collect()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- done{seq: t.seq, result: t.job.Execute(p.ctx)}
		}
	}
}

func (p *Pool) collect() {
	defer p.collectWG.Done()
	for d := range p.results {
		for len(p.collected) <= d.seq {
			p.collected = append(p.collected, nil)
		}
		p.collected[d.seq] = d.result
	}
}

// Submit queues a job. It returns false if the pool was shut down or already waited on.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- task{seq: p.next, job: job}:
		p.next++
		return true
	}
}

// Wait blocks until every submitted job finished and returns results by submission order.
// Jobs dropped by cancellation leave a nil entry.
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()

	p.mu.Lock()
	n := p.next
	p.mu.Unlock()
	for len(p.collected) < n {
		p.collected = append(p.collected, nil)
	}
	return p.collected
}

// Shutdown cancels outstanding jobs and stops the workers
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.closeQueue()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
}

func (p *Pool) closeQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// funcJob adapts a function to Job
type funcJob[T any] struct {
	index int
	fn    func(ctx context.Context, index int) T
}

type funcResult[T any] struct {
	value T
}

func (r *funcResult[T]) GetError() error { return nil }

func (j *funcJob[T]) Execute(ctx context.Context) Result {
	return &funcResult[T]{value: j.fn(ctx, j.index)}
}

// RunOrdered applies fn to indices 0..n-1 on a pool of workers and returns
// the values in index order. Indices skipped by cancellation hold the zero value.
func RunOrdered[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, index int) T) []T {
	out := make([]T, n)
	if n == 0 {
		return out
	}

	pool := NewPool(ctx, min(workers, n))
	pool.Start()
	for i := 0; i < n; i++ {
		if !pool.Submit(&funcJob[T]{index: i, fn: fn}) {
			break
		}
	}
	for i, r := range pool.Wait() {
		if fr, ok := r.(*funcResult[T]); ok {
			out[i] = fr.value
		}
	}
	return out
}
