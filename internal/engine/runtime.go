package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Job runs on a runtime worker with the shared engine.
type Job func(ctx context.Context, eng Engine)

type task struct {
	ctx context.Context
	job Job
}

// Runtime is the process-wide home of the engine: it builds the engine and
// starts the render workers on first use, exactly once.
type Runtime struct {
	factory Factory
	cfg     Config
	workers int
	log     *zap.Logger

	once    sync.Once
	inits   atomic.Int32
	eng     Engine
	initErr error

	jobs chan task
	quit chan struct{}
	wg   sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewRuntime(factory Factory, cfg Config, workers int, logger *zap.Logger) *Runtime {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		factory: factory,
		cfg:     cfg,
		workers: workers,
		log:     logger.Named("engine"),
		jobs:    make(chan task, workers*4),
		quit:    make(chan struct{}),
	}
}

// Ensure initializes the engine and workers once. Every call returns the
// outcome of that single initialization.
func (r *Runtime) Ensure() (Engine, error) {
	r.once.Do(func() {
		r.inits.Add(1)
		if r.factory == nil {
			r.initErr = fmt.Errorf("%w: no factory", ErrUnknownEngine)
			return
		}
		eng, err := r.factory(r.cfg)
		if err != nil {
			r.initErr = fmt.Errorf("engine: init: %w", err)
			r.log.Error("engine initialization failed", zap.Error(err))
			return
		}
		r.eng = eng
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.work()
		}
		r.log.Info("engine ready", zap.Int("workers", r.workers))
	})
	return r.eng, r.initErr
}

// Initializations reports how many times the factory ran (0 or 1).
func (r *Runtime) Initializations() int { return int(r.inits.Load()) }

// Schedule queues job for a worker. It blocks while the queue is full.
func (r *Runtime) Schedule(ctx context.Context, job Job) error {
	if _, err := r.Ensure(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.jobs <- task{ctx: ctx, job: job}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case t := <-r.jobs:
			r.run(t)
		}
	}
}

func (r *Runtime) run(t task) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("render job panicked", zap.Any("panic", p))
		}
	}()
	t.job(t.ctx, r.eng)
}

// Close stops the workers. Jobs still queued run once more with a canceled
// context so their owners observe completion.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.quit)
		r.wg.Wait()

		canceled, cancel := context.WithCancel(context.Background())
		cancel()
	drain:
		for {
			select {
			case t := <-r.jobs:
				r.run(task{ctx: canceled, job: t.job})
			default:
				break drain
			}
		}

		if c, ok := r.eng.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
