package workers

import (
	"sync"
	"time"
)

// Pool bounds how many scrape tasks run at once across all jobs and spaces
// them out so concurrent searches cannot stampede the target sites.
type Pool struct {
	semaphore   chan struct{}
	rateLimit   time.Duration
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastStarted time.Time
}

// NewPool creates a pool with the given concurrency and minimum interval
// between task starts. A zero rateLimit disables spacing.
func NewPool(maxWorkers int, rateLimit time.Duration) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		semaphore: make(chan struct{}, maxWorkers),
		rateLimit: rateLimit,
	}
}

// Submit schedules task on the pool. It never blocks the caller.
func (p *Pool) Submit(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.semaphore <- struct{}{}
		defer func() { <-p.semaphore }()

		p.pace()
		task()
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) pace() {
	if p.rateLimit <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if elapsed := time.Since(p.lastStarted); elapsed < p.rateLimit {
		time.Sleep(p.rateLimit - elapsed)
	}
	p.lastStarted = time.Now()
}
