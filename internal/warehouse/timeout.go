package warehouse

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/poutila/doxstrux/internal/errors"
)

// TimeoutScope runs one collector call under a time budget.
type TimeoutScope interface {
	Run(ctx context.Context, budget time.Duration, fn func(context.Context) error) error
	// Mode names the implementation.
	Mode() string
}

// NewTimeoutScope returns the scope for mode. Subprocess isolation is not
// available and fails here rather than enforcing nothing.
func NewTimeoutScope(mode string) (TimeoutScope, error) {
	switch mode {
	case "", TimeoutPreemptive:
		return preemptiveScope{}, nil
	case TimeoutCooperative:
		return cooperativeScope{}, nil
	case TimeoutSubprocess:
		return nil, errors.NotImplemented("subprocess collector isolation")
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown timeout mode %q", mode), nil)
	}
}

// PanicError is returned when a collector call panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("collector panicked: %v", e.Value)
}

// SlowCallError reports a cooperative call that overran its budget but
// was allowed to finish. Err is the call's own result.
type SlowCallError struct {
	Elapsed time.Duration
	Budget  time.Duration
	Err     error
}

func (e *SlowCallError) Error() string {
	return fmt.Sprintf("collector call took %s, budget %s", e.Elapsed, e.Budget)
}

func (e *SlowCallError) Unwrap() error { return e.Err }

// call runs fn and turns a panic into a PanicError.
func call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// AbandonedCallError is returned when a scope stops waiting for a call
// that is still running. Done is closed once the call returns; until then
// the collector's state belongs to that goroutine.
type AbandonedCallError struct {
	Err  error
	Done <-chan struct{}
}

func (e *AbandonedCallError) Error() string { return e.Err.Error() }

func (e *AbandonedCallError) Unwrap() error { return e.Err }

// preemptiveScope runs the call on its own goroutine and stops waiting
// when the budget expires or ctx is cancelled. The goroutine cannot be
// killed, so an abandoned call is reported with a channel that closes
// when it finally returns.
type preemptiveScope struct{}

func (preemptiveScope) Mode() string { return TimeoutPreemptive }

func (preemptiveScope) Run(ctx context.Context, budget time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- call(cctx, fn)
	}()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		err := ctx.Err()
		if err == nil {
			err = errors.NewTimeoutError(errors.ErrCodeCollectorTimeout,
				fmt.Sprintf("collector exceeded %s budget", budget))
		}
		return &AbandonedCallError{Err: err, Done: finished}
	}
}

// cooperativeScope runs the call inline. The call sees a deadline on its
// context and is expected to check it; an overrun is reported, not
// enforced.
type cooperativeScope struct{}

func (cooperativeScope) Mode() string { return TimeoutCooperative }

func (cooperativeScope) Run(ctx context.Context, budget time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	err := call(cctx, fn)
	elapsed := time.Since(start)

	if err != nil && cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return errors.NewTimeoutError(errors.ErrCodeCollectorTimeout,
			fmt.Sprintf("collector gave up after %s budget", budget)).WithCause(err)
	}
	if elapsed > budget {
		return &SlowCallError{Elapsed: elapsed, Budget: budget, Err: err}
	}
	return err
}
