package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotLoaded is reported by Handle.Err before initialization has finished.
var ErrNotLoaded = errors.New("engine not loaded")

// Factory builds an engine. It may take a long time.
type Factory func(ctx context.Context) (Engine, error)

type slot struct{ engine Engine }

// Handle holds the single process-wide engine. It is empty until Init
// succeeds and never changes afterwards.
type Handle struct {
	current atomic.Pointer[slot]
	once    sync.Once

	mu      sync.Mutex
	initErr error
}

func NewHandle() *Handle {
	return &Handle{}
}

// Init runs factory once. Later calls return the first call's result.
func (h *Handle) Init(ctx context.Context, factory Factory) error {
	h.once.Do(func() {
		e, err := factory(ctx)
		if err != nil {
			h.mu.Lock()
			h.initErr = err
			h.mu.Unlock()
			return
		}
		h.current.Store(&slot{engine: e})
	})
	return h.Err()
}

// Get returns the engine if initialization has succeeded.
func (h *Handle) Get() (Engine, bool) {
	s := h.current.Load()
	if s == nil {
		return nil, false
	}
	return s.engine, true
}

// Err reports nil once loaded, the factory error if loading failed, and
// ErrNotLoaded while loading is still pending.
func (h *Handle) Err() error {
	if h.current.Load() != nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initErr != nil {
		return h.initErr
	}
	return ErrNotLoaded
}
