// Package workers provides fixed-size goroutine pools and futures.
package workers

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"chansync/internal/domain/logger"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is one unit of pool work.
type Job func()

// Pool runs jobs on a fixed number of goroutines.
type Pool struct {
	name     string
	jobs     chan Job
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool starts a pool of size workers (at least one).
func NewPool(name string, size int) *Pool {
	size = max(size, 1)
	p := &Pool{
		name:     name,
		jobs:     make(chan Job),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Pl.D(3, "Started %d %s worker goroutines", size, name)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			logger.Pl.D(4, "%s worker %d shutting down", p.name, id)
			return
		case job := <-p.jobs:
			job()
		}
	}
}

// Submit hands job to an idle worker, blocking until one is free, ctx is done or the pool stops.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case <-p.stopChan:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-p.stopChan:
		return ErrPoolStopped
	}
}

// Stop stops accepting work. Running jobs finish; Stop does not wait for them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

// Wait blocks until every worker has exited after Stop.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// DefaultSize is max(2, NumCPU).
func DefaultSize() int {
	return max(2, runtime.NumCPU())
}

var (
	convertOnce  sync.Once
	convertPool  *Pool
	resolverOnce sync.Once
	resolverPool *Pool
)

// ConvertPool is the process-wide transcoding pool.
func ConvertPool() *Pool {
	convertOnce.Do(func() { convertPool = NewPool("convert", DefaultSize()) })
	return convertPool
}

// ResolverPool is the process-wide metadata lookup pool.
func ResolverPool() *Pool {
	resolverOnce.Do(func() { resolverPool = NewPool("resolver", DefaultSize()) })
	return resolverPool
}
