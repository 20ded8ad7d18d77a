package tempfile

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

type pending struct {
	path string
	due  time.Time
}

type pendingHeap []pending

func (h pendingHeap) Len() int           { return len(h) }
func (h pendingHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)        { *h = append(*h, x.(pending)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Janitor removes files from a Dir after a delay, in process. A periodic
// sweep catches files whose removal was never scheduled.
type Janitor struct {
	dir           *Dir
	sweepInterval time.Duration
	maxAge        time.Duration
	logger        *slog.Logger

	add       chan pending
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	queue pendingHeap
}

// NewJanitor starts the removal loop. A zero sweepInterval disables sweeping.
func NewJanitor(dir *Dir, sweepInterval, maxAge time.Duration, logger *slog.Logger) *Janitor {
	j := &Janitor{
		dir:           dir,
		sweepInterval: sweepInterval,
		maxAge:        maxAge,
		logger:        logger,
		add:           make(chan pending),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go j.run()
	return j
}

// ScheduleRemoval queues path for removal after the delay. After Close the
// file is removed immediately.
func (j *Janitor) ScheduleRemoval(ctx context.Context, path string, after time.Duration) error {
	if after <= 0 {
		j.remove(path)
		return nil
	}

	select {
	case j.add <- pending{path: path, due: time.Now().Add(after)}:
		return nil
	case <-j.stop:
		j.remove(path)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and removes every file still pending.
func (j *Janitor) Close() {
	j.closeOnce.Do(func() { close(j.stop) })
	<-j.done
}

func (j *Janitor) run() {
	defer close(j.done)

	var sweep <-chan time.Time
	if j.sweepInterval > 0 {
		ticker := time.NewTicker(j.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var due <-chan time.Time
		if len(j.queue) > 0 {
			timer.Reset(time.Until(j.queue[0].due))
			due = timer.C
		}

		select {
		case p := <-j.add:
			heap.Push(&j.queue, p)
		case now := <-due:
			for len(j.queue) > 0 && !j.queue[0].due.After(now) {
				j.remove(heap.Pop(&j.queue).(pending).path)
			}
		case <-sweep:
			j.sweep()
		case <-j.stop:
			for len(j.queue) > 0 {
				j.remove(heap.Pop(&j.queue).(pending).path)
			}
			return
		}
		timer.Stop()
	}
}

func (j *Janitor) remove(path string) {
	if err := j.dir.Remove(path); err != nil {
		j.logger.Warn("failed to remove temp file", "path", path, "error", err)
		return
	}
	j.logger.Debug("removed temp file", "path", path)
}

func (j *Janitor) sweep() {
	n, err := j.dir.Sweep(j.maxAge)
	if err != nil {
		j.logger.Warn("temp dir sweep incomplete", "removed", n, "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("swept stale temp files", "removed", n)
	}
}
