package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"iacsift/internal/config"
)

// DefaultTaskTimeout bounds a single task
const DefaultTaskTimeout = 30 * time.Second

// PoolMetrics provides metrics about the worker pool's performance
type PoolMetrics struct {
	TotalTasks         int64
	CompletedTasks     int64
	FailedTasks        int64
	SkippedTasks       int64
	CurrentWorkers     int64
	PeakWorkers        int64
	AverageExecutionMs int64
	TotalExecutionMs   int64
	mu                 sync.RWMutex
}

// Task represents a unit of work to be executed
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of workers
type Pool struct {
	maxWorkers    int
	taskTimeout   time.Duration
	tasks         chan Task
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	metrics       *PoolMetrics
	activeWorkers int64
	stopping      int32
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		maxWorkers:  maxWorkers,
		taskTimeout: DefaultTaskTimeout,
		tasks:       make(chan Task, maxWorkers*2),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
	}
}

// SetTaskTimeout changes the per-task timeout; call before Start
func (p *Pool) SetTaskTimeout(d time.Duration) {
	if d > 0 {
		p.taskTimeout = d
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.maxWorkers
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops the worker pool and waits for all tasks to complete
func (p *Pool) Stop() {
	if !atomic.CompareAndSwapInt32(&p.stopping, 0, 1) {
		return
	}

	p.cancel()
	p.wg.Wait()
	close(p.tasks)
}

// GetMetrics returns the current metrics for the pool
func (p *Pool) GetMetrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	return PoolMetrics{
		TotalTasks:         p.metrics.TotalTasks,
		CompletedTasks:     atomic.LoadInt64(&p.metrics.CompletedTasks),
		FailedTasks:        atomic.LoadInt64(&p.metrics.FailedTasks),
		SkippedTasks:       atomic.LoadInt64(&p.metrics.SkippedTasks),
		CurrentWorkers:     atomic.LoadInt64(&p.activeWorkers),
		PeakWorkers:        atomic.LoadInt64(&p.metrics.PeakWorkers),
		AverageExecutionMs: p.metrics.TotalExecutionMs / max(atomic.LoadInt64(&p.metrics.CompletedTasks), 1),
		TotalExecutionMs:   p.metrics.TotalExecutionMs,
	}
}

func max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Submit queues a task and reports whether the pool accepted it
func (p *Pool) Submit(task Task) bool {
	if atomic.LoadInt32(&p.stopping) == 1 {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	currentWorkers := atomic.LoadInt64(&p.activeWorkers)
	for {
		peak := atomic.LoadInt64(&p.metrics.PeakWorkers)
		if currentWorkers <= peak {
			break
		}
		if atomic.CompareAndSwapInt64(&p.metrics.PeakWorkers, peak, currentWorkers) {
			break
		}
	}

	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(p.ctx, task)

		case <-p.ctx.Done():
			// drain what is already queued so no submitter waits forever
			for {
				select {
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.run(context.Background(), task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(parent context.Context, task Task) {
	start := time.Now()

	taskCtx, cancel := context.WithTimeout(parent, p.taskTimeout)
	err := task(taskCtx)
	cancel()

	executionMs := time.Since(start).Milliseconds()

	p.metrics.mu.Lock()
	p.metrics.TotalExecutionMs += executionMs
	p.metrics.mu.Unlock()

	if err != nil {
		atomic.AddInt64(&p.metrics.FailedTasks, 1)
	} else {
		atomic.AddInt64(&p.metrics.CompletedTasks, 1)
	}
}

// ExecuteTasks runs tasks on the pool and waits for them. Once ctx is done no
// further task is submitted, and queued tasks that have not started are
// skipped; the number of skipped tasks is returned.
func (p *Pool) ExecuteTasks(ctx context.Context, tasks []Task) (skipped int) {
	var wg sync.WaitGroup
	var skippedCount int64

	p.metrics.mu.Lock()
	p.metrics.TotalTasks += int64(len(tasks))
	p.metrics.mu.Unlock()

	for i, t := range tasks {
		if ctx.Err() != nil {
			atomic.AddInt64(&skippedCount, int64(len(tasks)-i))
			break
		}

		task := t
		wg.Add(1)
		wrapped := func(taskCtx context.Context) error {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				atomic.AddInt64(&skippedCount, 1)
				return err
			}
			return task(mergeContext(ctx, taskCtx))
		}

		if !p.Submit(wrapped) {
			wg.Done()
			atomic.AddInt64(&skippedCount, int64(len(tasks)-i))
			break
		}
	}

	wg.Wait()

	n := atomic.LoadInt64(&skippedCount)
	atomic.AddInt64(&p.metrics.SkippedTasks, n)
	return int(n)
}

// mergeContext returns a context cancelled when either parent is done and
// carrying the earlier deadline
func mergeContext(a, b context.Context) context.Context {
	ctx := a
	if d, ok := b.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(a, d)
		go func() {
			select {
			case <-b.Done():
			case <-ctx.Done():
			}
			cancel()
		}()
		return ctx
	}
	return ctx
}

var (
	sharedPool *Pool
	poolMutex  sync.Mutex
)

// GetSharedPool returns the shared worker pool, sized from config.Config.MaxWorkers
// on first use
func GetSharedPool() *Pool {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if sharedPool == nil {
		sharedPool = NewPool(config.Config.MaxWorkers)
		sharedPool.Start()
	}
	return sharedPool
}
