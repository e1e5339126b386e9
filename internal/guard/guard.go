// Package guard runs a task on its own goroutine under a wall-clock deadline.
package guard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// TimeoutError is returned when the task outlives its deadline.
type TimeoutError struct {
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("conversion timed out after %s", e.Deadline)
}

// Timeout reports true so net-style timeout checks recognise the error.
func (e *TimeoutError) Timeout() bool { return true }

// PanicError wraps a panic recovered from the task goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.Value) }

type outcome[T any] struct {
	val T
	err error
}

// Run executes task with a context that is cancelled once deadline elapses
// (or ctx is done). It returns the task's own result if it finishes first.
//
// On timeout Run returns immediately with *TimeoutError; it never waits for
// the task, which is expected to notice ctx and stop on its own. A parent
// cancellation is reported as ctx.Err().
func Run[T any](ctx context.Context, deadline time.Duration, task func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if deadline <= 0 {
		return zero, fmt.Errorf("guard: non-positive deadline %s", deadline)
	}

	tctx, cancel := context.WithTimeout(ctx, deadline)
	done := make(chan outcome[T], 1)

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := task(tctx)
		done <- outcome[T]{val: v, err: err}
	}()

	select {
	case out := <-done:
		return out.val, classify(ctx, tctx, deadline, out.err)
	case <-tctx.Done():
		// A result that landed at the same instant still wins.
		select {
		case out := <-done:
			return out.val, classify(ctx, tctx, deadline, out.err)
		default:
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Deadline: deadline}
	}
}

// classify turns a task error caused by the guard's own deadline into
// *TimeoutError so callers see one shape for timeouts.
func classify(parent, tctx context.Context, deadline time.Duration, err error) error {
	if err != nil && parent.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Deadline: deadline}
	}
	return err
}

// Do is Run for tasks that only report an error.
func Do(ctx context.Context, deadline time.Duration, task func(ctx context.Context) error) error {
	_, err := Run(ctx, deadline, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
	return err
}
