package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Job is one unit of background work. Jobs sharing a Key run in order on the same worker.
type Job struct {
	Key     string
	Handler func(ctx context.Context) error
}

// PoolStats contiene métricas del pool
type PoolStats struct {
	NumWorkers      int   `json:"num_workers"`
	QueueSize       int   `json:"queue_size"`
	Queued          int   `json:"queued"`
	ActiveWorkers   int   `json:"active_workers"`
	TotalDispatched int64 `json:"total_dispatched"`
	TotalProcessed  int64 `json:"total_processed"`
	TotalDropped    int64 `json:"total_dropped"`
	TotalErrors     int64 `json:"total_errors"`
}

// Pool is a fixed set of workers, each with its own bounded queue. Dispatch never blocks;
// a full queue drops the job and counts it.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup

	totalDispatched atomic.Int64
	totalProcessed  atomic.Int64
	totalDropped    atomic.Int64
	totalErrors     atomic.Int64
}

type worker struct {
	id         int
	queue      chan Job
	processing atomic.Bool
	pool       *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
}

// Start lanza los workers. ctx is handed to every job.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := range p.workers {
		w := &worker{id: i, queue: make(chan Job, p.queueSize), pool: p}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run(ctx)
	}
	logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch encola el job sin bloquear y reporta si fue aceptado.
func (p *Pool) TryDispatch(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.stopped {
		p.totalDropped.Add(1)
		return false
	}

	p.totalDispatched.Add(1)
	shard := p.shard(job.Key)
	select {
	case p.workers[shard].queue <- job:
		return true
	default:
		p.totalDropped.Add(1)
		logrus.Warnf("[MSG_WORKER_POOL] Worker %d queue full, dropping job for %s", shard, job.Key)
		return false
	}
}

// Stop closes the queues and waits until every queued job has run.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, w := range p.workers {
		close(w.queue)
	}
	p.mu.Unlock()

	logrus.Info("[MSG_WORKER_POOL] Stopping workers...")
	p.wg.Wait()
	logrus.Info("[MSG_WORKER_POOL] All workers stopped")
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: p.totalDispatched.Load(),
		TotalProcessed:  p.totalProcessed.Load(),
		TotalDropped:    p.totalDropped.Load(),
		TotalErrors:     p.totalErrors.Load(),
	}
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		stats.Queued += len(w.queue)
		if w.processing.Load() {
			stats.ActiveWorkers++
		}
	}
	return stats
}

func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	for job := range w.queue {
		w.process(ctx, job)
	}
}

func (w *worker) process(ctx context.Context, job Job) {
	w.processing.Store(true)
	defer func() {
		if r := recover(); r != nil {
			w.pool.totalErrors.Add(1)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for %s: %v", w.id, job.Key, r)
		}
		w.processing.Store(false)
		w.pool.totalProcessed.Add(1)
	}()

	if err := job.Handler(ctx); err != nil {
		w.pool.totalErrors.Add(1)
		logrus.WithError(err).Errorf("[MSG_WORKER_POOL] Worker %d job failed for %s", w.id, job.Key)
	}
}
