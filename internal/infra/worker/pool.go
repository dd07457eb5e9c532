package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"course-payment-portal/internal/domain/ports/adapter"
)

var _ adapter.TaskRunner = (*Pool)(nil)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines. Used for outbound
// notification dispatch so SMTP latency never rides a request path.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, log: logger}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Warn().Err(err).Int("worker", id).Msg("background task failed")
					}
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Run adapts Submit for callers that only need a queued/dropped signal.
func (p *Pool) Run(task func(ctx context.Context)) bool {
	if task == nil {
		return false
	}
	return p.Submit(func(ctx context.Context) error {
		task(ctx)
		return nil
	}) == nil
}

// Submit enqueues a task; a saturated queue drops the task rather than
// applying back-pressure to callers.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return errors.New("worker queue full")
	}
}
