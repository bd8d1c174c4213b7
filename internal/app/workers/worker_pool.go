package workers

import (
	"context"
	"log/slog"
	"sync"

	"francoggm/terminal-payments-demo/internal/app/workers/processors"
)

type WorkerPool struct {
	name            string
	workers         []*worker
	eventsCh        chan any
	eventsProcessor processors.Processor
	wg              sync.WaitGroup
}

// NewWorkerPool builds count workers reading from eventsCh. A failed event is
// re-enqueued with backoff until it has been tried maxRetries more times;
// zero disables retries.
func NewWorkerPool(name string, count, maxRetries int, eventsCh chan any, eventsProcessor processors.Processor, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	var workers []*worker
	for id := range count {
		w := newWorker(id, name, maxRetries, eventsCh, eventsProcessor, logger.With("pool", name, "worker", id))
		workers = append(workers, w)
	}

	return &WorkerPool{
		name:            name,
		workers:         workers,
		eventsCh:        eventsCh,
		eventsProcessor: eventsProcessor,
	}
}

func (p *WorkerPool) StartWorkers(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.start(ctx)
		}()
	}
}

// Wait blocks until every worker has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
