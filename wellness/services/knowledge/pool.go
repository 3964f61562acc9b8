package knowledge

import (
	"context"
	"errors"
	"sync"

	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

var errPoolClosed = errors.New("ingestion pool is stopped")

// pool runs tasks on a fixed number of workers.
type pool struct {
	size  int
	tasks chan func(context.Context)
	wg    sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once
}

func newPool(size, backlog int) *pool {
	return &pool{
		size:  size,
		tasks: make(chan func(context.Context), backlog),
		done:  make(chan struct{}),
	}
}

func (p *pool) start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case task := <-p.tasks:
					p.run(ctx, id, task)
				case <-p.done:
					p.drain(ctx, id)
					return
				}
			}
		}(i)
	}
}

// drain runs whatever is still queued.
func (p *pool) drain(ctx context.Context, id int) {
	for {
		select {
		case task := <-p.tasks:
			p.run(ctx, id, task)
		default:
			return
		}
	}
}

func (p *pool) run(ctx context.Context, id int, task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("ingestion task panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// submit queues a task, waiting for room until ctx ends or the pool stops.
func (p *pool) submit(ctx context.Context, task func(context.Context)) error {
	select {
	case <-p.done:
		return errPoolClosed
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	case <-p.done:
		return errPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop lets queued tasks finish, then returns.
func (p *pool) stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	if n := len(p.tasks); n > 0 {
		logging.ErrorLogger.Warn("ingestion tasks dropped at shutdown", zap.Int("count", n))
	}
}
