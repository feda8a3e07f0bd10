package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Runner runs work detached from the caller's request
type Runner interface {
	// Submit returns false when the work was dropped
	Submit(name string, fn func(ctx context.Context) error) bool
}

// Pool bounded fire-and-forget runner. Submit never blocks: when every
// worker is busy the task is dropped and logged, never queued or retried.
type Pool struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *zap.Logger
}

type antsLogger struct {
	logger *zap.Logger
}

func (l antsLogger) Printf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func NewPool(size int, timeout time.Duration, logger *zap.Logger) (*Pool, error) {
	logger = logger.Named("dispatch")
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{logger: logger}),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("dispatch task panic", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatch pool: %w", err)
	}

	return &Pool{pool: pool, timeout: timeout, logger: logger}, nil
}

func (p *Pool) Submit(name string, fn func(ctx context.Context) error) bool {
	err := p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			p.logger.Warn("dispatch task failed",
				zap.String("task", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		p.logger.Debug("dispatch task done",
			zap.String("task", name),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.logger.Warn("dispatch pool full, task dropped", zap.String("task", name))
		} else {
			p.logger.Error("dispatch submit failed", zap.String("task", name), zap.Error(err))
		}
		return false
	}
	return true
}

// Running number of busy workers
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release waits up to timeout for running tasks, then frees the workers
func (p *Pool) Release(timeout time.Duration) error {
	return p.pool.ReleaseTimeout(timeout)
}

// Inline runs every task synchronously on the caller's goroutine; used by tests
// and the one-shot CLI commands
type Inline struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func (r Inline) Submit(name string, fn func(ctx context.Context) error) bool {
	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil && r.Logger != nil {
		r.Logger.Warn("inline task failed", zap.String("task", name), zap.Error(err))
	}
	return true
}
