package stream

import (
	"sync"
	"time"
)

// taskPool tracks live read-loop tasks with explicit ownership. Each task
// registers under its session identifier, which makes shutdown accountable:
// drain can name exactly which sessions failed to finish in time.
type taskPool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	active map[string]struct{}
}

func newTaskPool() *taskPool {
	p := &taskPool{active: make(map[string]struct{})}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// add registers a running task. Duplicate registration by the same id is a
// protocol violation.
func (p *taskPool) add(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, holds := p.active[id]; holds {
		panic("taskPool: id already registered")
	}
	p.active[id] = struct{}{}
}

// done deregisters a finished task and wakes any drain waiter.
func (p *taskPool) done(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, id)
	p.cond.Broadcast()
}

// count returns the number of live tasks.
func (p *taskPool) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// drain blocks until every task has finished or grace expires, whichever
// comes first, and returns the identifiers of tasks still live at return.
func (p *taskPool) drain(grace time.Duration) []string {
	deadline := time.Now().Add(grace)
	expired := time.AfterFunc(grace, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer expired.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.active) > 0 && time.Now().Before(deadline) {
		p.cond.Wait()
	}

	left := make([]string, 0, len(p.active))
	for id := range p.active {
		left = append(left, id)
	}
	return left
}
