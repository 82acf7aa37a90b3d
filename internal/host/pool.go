package host

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool runs fire-and-forget tasks on a fixed set of workers.
// Tasks are never reported back to the submitter.
type WorkerPool struct {
	logger  *zap.Logger
	metrics *Metrics

	queue       chan func()
	workerCount int

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// NewWorkerPool creates a pool with workers goroutines and a queue of queueSize.
func NewWorkerPool(workers, queueSize int, metrics *Metrics, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		logger:      logger,
		metrics:     metrics,
		queue:       make(chan func(), queueSize),
		workerCount: workers,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("Worker pool started", zap.Int("workers", p.workerCount))
}

// Execute submits a task. It never blocks: when the queue is full, or the
// pool has not been started yet, the task runs on its own goroutine. Tasks
// submitted after Stop are dropped.
func (p *WorkerPool) Execute(task func()) {
	if task == nil {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.logger.Warn("Worker pool stopped, dropping task")
		p.metrics.taskDone(taskDropped)
		return
	}

	if p.started {
		select {
		case p.queue <- task:
			p.metrics.taskDone(taskQueued)
			return
		default:
			p.logger.Warn("Worker queue full, running task on its own goroutine")
		}
	}

	p.metrics.taskDone(taskOverflow)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(task)
	}()
}

// Stop waits for queued tasks to finish or for ctx to expire.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("Worker pool stopped")
		return nil
	case <-ctx.Done():
		close(p.stopCh)
		p.logger.Warn("Worker pool shutdown timed out")
		return ctx.Err()
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(task)
		case <-p.stopCh:
			p.logger.Debug("Worker received stop signal", zap.Int("workerId", id))
			return
		}
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.taskDone(taskPanicked)
			p.logger.Error("Task panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	task()
}
