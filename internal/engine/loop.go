package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrLoopStopped = errors.New("engine loop is not running")

// Loop runs engine work on a single goroutine. Every read or write of
// engine state goes through Do, so the state itself needs no locks.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	log   *zap.Logger
}

func NewLoop(queue int, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		tasks: make(chan func(), max(queue, 1)),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Run processes tasks until ctx is cancelled. Call it once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Do runs fn on the loop goroutine and waits for it. A task whose ctx
// ended while it sat in the queue is skipped and Do returns ctx.Err(); once
// fn starts, Do reports its result even if ctx ends meanwhile.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("engine task panicked", zap.Any("panic", r), zap.Stack("stack"))
				res <- fmt.Errorf("engine task panicked: %v", r)
			}
		}()
		if err := ctx.Err(); err != nil {
			res <- err
			return
		}
		res <- fn()
	}

	select {
	case l.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}

	select {
	case err := <-res:
		return err
	case <-l.done:
		select {
		case err := <-res:
			return err
		default:
			return ErrLoopStopped
		}
	}
}

// call is Do for tasks that produce a value.
func call[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func() error {
		v, err := fn()
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
