package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool runs a fixed number of workers over one shared queue.
type Pool struct {
	worker *Worker
	size   int
	logger *zap.Logger

	wg sync.WaitGroup
}

// NewPool builds a pool of size workers sharing the given Worker.
func NewPool(w *Worker, size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{worker: w, size: size, logger: logger}
}

// Start launches the workers. They run until the context finishes.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker.Run(ctx)
		}()
	}
}

// Wait blocks until all workers have returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
