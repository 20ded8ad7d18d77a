// Package engine is the boundary to the F5-TTS inference engine. The engine
// itself is an external collaborator; this package only knows how to start
// it, hand it files, and ask which device it runs on.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/f5ttsapi/internal/config"
)

// InferRequest is one synthesis call. An empty RefText asks the engine to
// transcribe the reference audio itself.
type InferRequest struct {
	RefAudioPath  string
	RefText       string
	GenText       string
	Speed         float64
	RemoveSilence bool
	OutputPath    string
}

// Engine writes synthesized speech for req to req.OutputPath.
type Engine interface {
	Infer(ctx context.Context, req InferRequest) error
	Device() string
	Name() string
}

// New builds the backend selected by cfg and applies the concurrency gate.
func New(ctx context.Context, cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	var (
		e   Engine
		err error
	)

	switch cfg.Backend {
	case config.EngineBackendCLI:
		e, err = NewCLI(CLIConfig{
			Command: cfg.Command,
			Model:   cfg.Model,
			Vocoder: cfg.Vocoder,
			Device:  cfg.Device,
		}, logger)
	case config.EngineBackendRemote:
		e, err = NewRemote(ctx, RemoteConfig{
			BaseURL: cfg.RemoteURL,
			Model:   cfg.Model,
			Vocoder: cfg.Vocoder,
			Timeout: cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		e = WithTimeout(e, cfg.Timeout)
	}
	return Limit(e, cfg.MaxConcurrency), nil
}

type timeoutEngine struct {
	Engine
	timeout time.Duration
}

// WithTimeout bounds every Infer call made through e.
func WithTimeout(e Engine, timeout time.Duration) Engine {
	return &timeoutEngine{Engine: e, timeout: timeout}
}

func (t *timeoutEngine) Infer(ctx context.Context, req InferRequest) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Engine.Infer(ctx, req)
}
