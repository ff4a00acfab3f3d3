// Package pool 提供基于 ants 的有界并发执行器，用于数据集批量加载和问答取数扇出。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrClosed is returned for tasks submitted after Release.
	ErrClosed = errors.New("pool: released")
	// ErrInvalidConfig is returned by New for a non-positive capacity.
	ErrInvalidConfig = errors.New("pool: invalid config")
)

// Config sizes an ants pool.
type Config struct {
	// Capacity 最大并发 worker 数。
	Capacity int
	// Expiry 空闲 worker 的回收时间。
	Expiry time.Duration
	// PreAlloc 预分配 worker 队列。
	PreAlloc bool
	// Nonblocking 池满时立即拒绝而不是排队；Run 会改为在调用方执行被拒绝的任务。
	Nonblocking bool
	// MaxBlocking 阻塞模式下排队任务的上限，0 表示不限。
	MaxBlocking int
}

// DatasetConfig 数据集加载池。远程拉取受上游限流，排队等待即可。
func DatasetConfig(workers int) Config {
	return Config{
		Capacity:    workers,
		Expiry:      time.Minute,
		MaxBlocking: 100,
	}
}

// RetrievalConfig 问答取数池。每个请求最多扇出 workers 个数据集，池满时由请求 goroutine 自己执行。
func RetrievalConfig(workers int) Config {
	return Config{
		Capacity:    workers * 4,
		Expiry:      10 * time.Second,
		PreAlloc:    true,
		Nonblocking: true,
	}
}

// Stats is a snapshot of a pool's counters.
type Stats struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Running   int    `json:"running"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Inline    int64  `json:"inline"`
	Panics    int64  `json:"panics"`
}

// Pool runs task batches on an ants pool.
type Pool struct {
	name string
	ants *ants.Pool

	completed atomic.Int64
	failed    atomic.Int64
	inline    atomic.Int64
	panics    atomic.Int64

	releaseOnce sync.Once
	released    atomic.Bool
}

// New creates a named pool.
func New(name string, cfg Config) (*Pool, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, cfg.Capacity)
	}

	p := &Pool{name: name}
	a, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.Expiry),
		ants.WithPreAlloc(cfg.PreAlloc),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlocking),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Errorw("Worker panic escaped task recovery", "pool", name, "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", name, err)
	}
	p.ants = a

	logger.Infow("Worker pool created", "name", name, "capacity", cfg.Capacity, "nonblocking", cfg.Nonblocking)
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Run executes tasks concurrently and waits for all of them; errs[i]
// belongs to tasks[i]. A panicking task yields an error instead of
// crashing. Tasks rejected by a full nonblocking pool run on the caller's
// goroutine. Tasks not started before ctx ends report ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks ...func(ctx context.Context) error) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		if p.released.Load() {
			errs[i] = ErrClosed
			continue
		}

		wg.Add(1)
		run := func() {
			defer wg.Done()
			errs[i] = p.exec(ctx, task)
		}

		err := p.ants.Submit(run)
		switch {
		case err == nil:
		case errors.Is(err, ants.ErrPoolOverload):
			p.inline.Add(1)
			run()
		case errors.Is(err, ants.ErrPoolClosed):
			errs[i] = ErrClosed
			wg.Done()
		default:
			errs[i] = err
			wg.Done()
		}
	}

	wg.Wait()
	return errs
}

func (p *Pool) exec(ctx context.Context, task func(context.Context) error) error {
	err := call(ctx, task)
	var pe *PanicError
	if errors.As(err, &pe) {
		p.panics.Add(1)
	}
	if err != nil {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}
	return err
}

// PanicError reports a task that panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panic: %v", e.Value)
}

// call runs task unless ctx has ended, turning a panic into a PanicError.
func call(ctx context.Context, task func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return task(ctx)
}

// Go runs every task on its own goroutine and waits for all of them, with
// the same per-task error and panic handling as Pool.Run. It serves callers
// configured without a pool.
func Go(ctx context.Context, tasks ...func(ctx context.Context) error) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := call(ctx, task)
			var pe *PanicError
			if errors.As(err, &pe) {
				logger.Errorw("Task panicked", "task", i, "error", err.Error())
			}
			errs[i] = err
		}()
	}
	wg.Wait()
	return errs
}

// Release stops the pool. Running tasks finish; later Run calls fail with
// ErrClosed. Safe to call more than once.
func (p *Pool) Release() {
	p.releaseOnce.Do(func() {
		p.released.Store(true)
		p.ants.Release()
		logger.Infow("Worker pool released", "name", p.name)
	})
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Capacity:  p.ants.Cap(),
		Running:   p.ants.Running(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Inline:    p.inline.Load(),
		Panics:    p.panics.Load(),
	}
}
