package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/f5ttsapi/internal/queue"
	"github.com/nikhilbhutani/f5ttsapi/internal/tempfile"
)

// CleanupWorker removes generated audio and reference uploads on behalf of
// the API. It must see the same temp directory as the API.
type CleanupWorker struct {
	dir    *tempfile.Dir
	logger *slog.Logger
}

func NewCleanupWorker(dir *tempfile.Dir, logger *slog.Logger) *CleanupWorker {
	return &CleanupWorker{dir: dir, logger: logger}
}

// Register installs both cleanup handlers.
func (w *CleanupWorker) Register(r *queue.HandlersRegistry) {
	r.RegisterFunc(queue.TypeTempfileRemove, w.ProcessRemove)
	r.RegisterFunc(queue.TypeTempfileSweep, w.ProcessSweep)
}

func (w *CleanupWorker) ProcessRemove(ctx context.Context, t *asynq.Task) error {
	var payload queue.TempfileRemovePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := w.dir.Remove(payload.Path); err != nil {
		if errors.Is(err, tempfile.ErrOutsideDir) {
			w.logger.Warn("refusing to remove file", "path", payload.Path)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("remove %s: %w", payload.Path, err)
	}

	w.logger.Debug("removed temp file", "path", payload.Path)
	return nil
}

func (w *CleanupWorker) ProcessSweep(ctx context.Context, t *asynq.Task) error {
	var payload queue.TempfileSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.MaxAge <= 0 {
		return fmt.Errorf("sweep max age must be positive, got %s: %w", payload.MaxAge, asynq.SkipRetry)
	}

	n, err := w.dir.Sweep(payload.MaxAge)
	if n > 0 {
		w.logger.Info("swept stale temp files", "removed", n, "max_age", payload.MaxAge)
	}
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}
