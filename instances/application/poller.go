package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PollFunc runs one attempt and reports whether polling is finished.
type PollFunc func(ctx context.Context, attempt int) (done bool)

type pollTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller runs at most one bounded polling loop per key. Loops end on success,
// on budget exhaustion, on Stop, or on Close; none outlive the Poller.
type Poller struct {
	interval time.Duration
	attempts int

	mu     sync.Mutex
	tasks  map[string]*pollTask
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(interval time.Duration, attempts int) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		interval: interval,
		attempts: attempts,
		tasks:    make(map[string]*pollTask),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start replaces any loop already running for key.
func (p *Poller) Start(key string, fn PollFunc) {
	p.Stop(key)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return
	}

	if prev, ok := p.tasks[key]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(p.ctx)
	task := &pollTask{cancel: cancel, done: make(chan struct{})}
	p.tasks[key] = task

	p.wg.Add(1)
	go p.run(ctx, key, task, fn)
}

func (p *Poller) run(ctx context.Context, key string, task *pollTask, fn PollFunc) {
	defer p.wg.Done()
	defer close(task.done)
	defer p.forget(key, task)
	defer task.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if fn(ctx, attempt) {
			return
		}
	}
	logrus.Infof("[POLLER] %s: no result after %d attempts, giving up", key, p.attempts)
}

func (p *Poller) forget(key string, task *pollTask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tasks[key] == task {
		delete(p.tasks, key)
	}
}

// Stop cancels the loop for key and waits for it to exit. Must not be called from inside a PollFunc.
func (p *Poller) Stop(key string) bool {
	p.mu.Lock()
	task, ok := p.tasks[key]
	if ok {
		delete(p.tasks, key)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	task.cancel()
	<-task.done
	return true
}

func (p *Poller) Running(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[key]
	return ok
}

// Close cancels every loop and waits for all of them.
func (p *Poller) Close() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}
