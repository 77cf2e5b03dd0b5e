// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type Task func(ctx context.Context) error

// keyQueue serializes the tasks of one key. pending counts tasks queued, running or
// being handed over, and is guarded by Pool.mu.
type keyQueue struct {
	tasks   chan Task
	pending int
}

// Pool runs tasks submitted under the same key one at a time in submission order. Each key
// gets its own queue, created on first use and retired once drained, so a slow key never
// holds up another. At most `workers` tasks run at once.
type Pool struct {
	mu        sync.Mutex
	queues    map[int64]*keyQueue
	queueSize int
	slots     chan struct{}
	ctx       context.Context

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
	log  *zerolog.Logger
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 4
	}
	return &Pool{
		queues:    make(map[int64]*keyQueue),
		queueSize: queueSize,
		slots:     make(chan struct{}, workers),
		ctx:       context.Background(),
		quit:      make(chan struct{}),
		log:       logger,
	}
}

// Start sets the context tasks run under. Queues created afterwards stop with it.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

// Stop signals the workers and waits for in-flight tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.once.Do(func() { close(p.quit) })
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit enqueues task on the queue owning key. It blocks while that queue is full,
// until ctx is done or the pool stops.
func (p *Pool) Submit(ctx context.Context, key int64, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.Lock()
	select {
	case <-p.quit:
		p.mu.Unlock()
		return ErrPoolStopped
	default:
	}
	q, ok := p.queues[key]
	if !ok {
		q = &keyQueue{tasks: make(chan Task, p.queueSize)}
		p.queues[key] = q
		p.wg.Add(1)
		go p.drain(p.ctx, key, q)
	}
	q.pending++
	runCtx := p.ctx
	p.mu.Unlock()

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		p.abandon(key, q)
		return ctx.Err()
	case <-runCtx.Done():
		p.abandon(key, q)
		return runCtx.Err()
	case <-p.quit:
		p.abandon(key, q)
		return ErrPoolStopped
	}
}

// abandon withdraws a hand-over that never reached the queue. The last one out closes
// an idle queue so its drain goroutine exits.
func (p *Pool) abandon(key int64, q *keyQueue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q.pending--
	if q.pending == 0 && p.queues[key] == q {
		delete(p.queues, key)
		close(q.tasks)
	}
}

func (p *Pool) drain(ctx context.Context, key int64, q *keyQueue) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			p.run(ctx, key, task)

			p.mu.Lock()
			q.pending--
			if q.pending == 0 && p.queues[key] == q {
				delete(p.queues, key)
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		}
	}
}

func (p *Pool) run(ctx context.Context, key int64, task Task) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return
	case <-p.quit:
		return
	}
	defer func() { <-p.slots }()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int64("key", key).Interface("panic", r).Msg("worker task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int64("key", key).Msg("worker task error")
	}
}
