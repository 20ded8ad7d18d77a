package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

type limited struct {
	Engine
	sem *semaphore.Weighted
}

// Limit allows at most n concurrent Infer calls on e. n <= 0 leaves e unbounded.
// Callers waiting for a slot give up when their context is done.
func Limit(e Engine, n int) Engine {
	if n <= 0 {
		return e
	}
	return &limited{Engine: e, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limited) Infer(ctx context.Context, req InferRequest) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for engine: %w", err)
	}
	defer l.sem.Release(1)
	return l.Engine.Infer(ctx, req)
}
