package media

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerPool is the in-process Dispatcher: a buffered task channel drained
// by a fixed number of workers. Tasks still queued at Close are dropped;
// their videos stay pending until the sweep marks them failed. A task
// running at Close has its context cancelled, which kills its ffmpeg run.
type WorkerPool struct {
	handler   Handler
	logger    *slog.Logger
	workers   int
	tasks     chan Task
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorkerPool creates a pool; call Start to launch the workers.
func NewWorkerPool(handler Handler, workers, queueSize int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		handler: handler,
		logger:  logger,
		workers: workers,
		tasks:   make(chan Task, queueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers once.
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting media worker pool", slog.Int("workers", p.workers))
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Dispatch queues t. It blocks while the queue is full, until ctx ends or
// the pool closes.
func (p *WorkerPool) Dispatch(ctx context.Context, t Task) error {
	select {
	case <-p.done:
		return ErrDispatcherClosed
	default:
	}

	select {
	case p.tasks <- t:
		return nil
	case <-p.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight tasks and waits for the workers to return.
func (p *WorkerPool) Close() error {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down media worker pool", slog.Int("queued", len(p.tasks)))
		close(p.done)
		p.cancel()
		p.wg.Wait()
	})
	return nil
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case t := <-p.tasks:
			// Handle logs and records failures itself.
			_ = p.handler.Handle(p.ctx, t)
		}
	}
}
