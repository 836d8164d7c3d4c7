// Package retry re-runs failing migration stages until they succeed.
//
// Every failure is transient unless wrapped with Permanent. There is no attempt
// cap: a run is expected to outlast a recovering database, and an operator
// restart is the answer to one that never recovers.
package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/BartekS5/sql2mongo/pkg/logger"
)

// Func is one attempt of a stage. attempt is 0 on the first call.
type Func func(ctx context.Context, attempt int) error

// Policy retries transient failures immediately, or after Delay when set.
type Policy struct {
	Delay time.Duration

	retries atomic.Int64
}

func New(delay time.Duration) *Policy {
	return &Policy{Delay: delay}
}

// Do calls fn until it returns nil, a Permanent error, or ctx ends.
func (p *Policy) Do(ctx context.Context, op string, fn Func) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				logger.Infof("%s succeeded after %d retries", op, attempt)
			}
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.retries.Add(1)
		logger.Errorf("Retry %d of %s: %v", attempt+1, op, err)

		if p.Delay > 0 {
			t := time.NewTimer(p.Delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}
}

// Retries is the number of failed attempts retried so far across all operations.
func (p *Policy) Retries() int64 {
	return p.retries.Load()
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
