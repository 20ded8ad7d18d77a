// Package synthesis turns a reference clip and a line of text into
// generated speech on disk.
package synthesis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/f5ttsapi/internal/audio"
	"github.com/nikhilbhutani/f5ttsapi/internal/engine"
	"github.com/nikhilbhutani/f5ttsapi/internal/tempfile"
)

const releaseTimeout = 5 * time.Second

// Request is one Generate call. Upload wins over ReferenceURL when both are set.
type Request struct {
	Upload        io.Reader
	UploadName    string
	ReferenceURL  string
	ReferenceText string
	Text          string
	RemoveSilence bool
	Speed         float64
}

// Result points at the generated WAV. Callers stream it, then call Release.
type Result struct {
	Path     string
	Duration time.Duration
}

type Config struct {
	CleanupDelay time.Duration
	FetchTimeout time.Duration
}

type Service struct {
	handle  *engine.Handle
	dir     *tempfile.Dir
	remover tempfile.Remover
	client  *http.Client
	cfg     Config
	logger  *slog.Logger
}

func NewService(handle *engine.Handle, dir *tempfile.Dir, remover tempfile.Remover, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		handle:  handle,
		dir:     dir,
		remover: remover,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		cfg:     cfg,
		logger:  logger,
	}
}

// Generate resolves the reference audio, runs the engine once, and returns
// the output path. The reference file never outlives the call; the output
// file is scheduled for removal here on failure and by Release on success.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	e, ok := s.handle.Get()
	if !ok {
		return nil, ErrNotInitialized
	}
	if req.Upload == nil && req.ReferenceURL == "" {
		return nil, ErrMissingReference
	}

	refPath, err := s.resolveReference(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.removeNow(refPath)

	outPath, err := s.dir.Allocate(tempfile.PrefixOutput)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	// A client disconnect must not kill a running inference.
	err = e.Infer(context.WithoutCancel(ctx), engine.InferRequest{
		RefAudioPath:  refPath,
		RefText:       req.ReferenceText,
		GenText:       req.Text,
		Speed:         req.Speed,
		RemoveSilence: req.RemoveSilence,
		OutputPath:    outPath,
	})
	if err != nil {
		s.logger.Error("synthesis failed", "engine", e.Name(), "error", err, "elapsed", time.Since(start))
		s.schedule(outPath)
		return nil, err
	}

	result := &Result{Path: outPath}
	if info, err := audio.Inspect(outPath); err != nil {
		s.logger.Warn("generated audio has an unreadable header", "path", outPath, "error", err)
	} else {
		result.Duration = info.Duration()
	}

	s.logger.Info("synthesis complete",
		"engine", e.Name(),
		"device", e.Device(),
		"text_length", len(req.Text),
		"audio_duration", result.Duration,
		"elapsed", time.Since(start),
	)
	return result, nil
}

// Release schedules removal of the generated file after the cleanup delay.
func (s *Service) Release(result *Result) {
	if result == nil {
		return
	}
	s.schedule(result.Path)
}

func (s *Service) resolveReference(ctx context.Context, req Request) (string, error) {
	if req.Upload != nil {
		path, err := s.dir.Write(tempfile.PrefixReference, req.Upload)
		if err != nil {
			return "", fmt.Errorf("store reference audio: %w", err)
		}
		s.logger.Debug("stored uploaded reference", "filename", req.UploadName, "path", path)
		return path, nil
	}
	return s.fetch(ctx, req.ReferenceURL)
}

func (s *Service) fetch(ctx context.Context, url string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: url, Err: fmt.Errorf("%s for url: %s", resp.Status, url)}
	}

	body := &downloadReader{r: resp.Body}
	path, err := s.dir.Write(tempfile.PrefixReference, body)
	if err != nil {
		if body.err != nil {
			return "", &FetchError{URL: url, Err: body.err}
		}
		return "", fmt.Errorf("store reference audio: %w", err)
	}
	s.logger.Debug("downloaded reference", "url", url, "path", path)
	return path, nil
}

// downloadReader remembers the first read error so download failures can be
// told apart from local write failures.
type downloadReader struct {
	r   io.Reader
	err error
}

func (d *downloadReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF && d.err == nil {
		d.err = err
	}
	return n, err
}

func (s *Service) removeNow(path string) {
	if err := s.dir.Remove(path); err != nil {
		s.logger.Warn("failed to remove temp file", "path", path, "error", err)
	}
}

func (s *Service) schedule(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := s.remover.ScheduleRemoval(ctx, path, s.cfg.CleanupDelay); err != nil {
		s.logger.Warn("could not schedule temp file removal, removing now", "path", path, "error", err)
		s.removeNow(path)
	}
}
