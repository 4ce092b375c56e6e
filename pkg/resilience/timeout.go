package resilience

import (
	"context"
	"fmt"
	"time"
)

// Bounded runs fn with a context that expires after limit and returns as
// soon as either fn finishes or the limit passes. fn keeps running in the
// background after a timeout, so it must honour its context. A non-positive
// limit calls fn directly on ctx.
//
// Cache reads use Bounded so a slow Redis degrades to a miss instead of
// stalling the search request.
func Bounded[T any](ctx context.Context, limit time.Duration, name string, fn func(context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	boundCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(boundCtx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.v, out.err
	case <-boundCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: caller gave up: %w", name, err)
		}
		return zero, fmt.Errorf("%s: no result within %v: %w", name, limit, context.DeadlineExceeded)
	}
}

// WithTimeout is Bounded for calls without a result.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(context.Context) error) error {
	_, err := Bounded(ctx, limit, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
