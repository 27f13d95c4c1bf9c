package executor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/paged-listing/pkg/logging"
)

var (
	executorTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_executor_tasks_total",
		Help: "Total tasks run by listing executors",
	}, []string{"executor"})

	executorQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listing_executor_queue_depth",
		Help: "Tasks waiting for a worker",
	}, []string{"executor"})

	executorPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_executor_panics_total",
		Help: "Tasks that panicked and were recovered",
	}, []string{"executor"})
)

// Pool is a fixed-size worker pool with an unbounded FIFO queue.
// A pool of size one runs tasks strictly in submission order.
type Pool struct {
	name   string
	size   int
	logger zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts a pool with the given number of workers.
// A non-positive size falls back to DefaultNetworkWorkers.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = DefaultNetworkWorkers
	}

	p := &Pool{
		name:   name,
		size:   size,
		logger: logging.NewLogger("executor").With().Str("executor", name).Logger(),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// NewSerial starts a single-worker pool.
func NewSerial(name string) *Pool {
	return NewPool(name, 1)
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Execute queues a task. Tasks submitted after Close are dropped.
func (p *Pool) Execute(task func()) {
	if task == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug().Msg("Task dropped (executor closed)")
		return
	}
	p.queue = append(p.queue, task)
	depth := len(p.queue)
	p.mu.Unlock()

	executorQueueDepth.WithLabelValues(p.name).Set(float64(depth))
	p.cond.Signal()
}

// Close stops accepting tasks, lets the workers drain the queue and waits for them.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	processed := 0

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			break
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		depth := len(p.queue)
		p.mu.Unlock()

		executorQueueDepth.WithLabelValues(p.name).Set(float64(depth))
		p.run(id, task)
		processed++
	}

	p.logger.Debug().
		Int("worker_id", id).
		Int("tasks_processed", processed).
		Msg("Worker stopped")
}

func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			executorPanicsTotal.WithLabelValues(p.name).Inc()
			p.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Task panicked")
		}
	}()

	executorTasksTotal.WithLabelValues(p.name).Inc()
	task()
}
