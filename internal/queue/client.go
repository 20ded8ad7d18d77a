package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/f5ttsapi/internal/config"
)

// Client enqueues cleanup work for cmd/worker. It satisfies tempfile.Remover.
type Client struct {
	client *asynq.Client
}

// RedisOpt converts the shared Redis settings into asynq's connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ScheduleRemoval enqueues removal of path to run after the delay.
func (c *Client) ScheduleRemoval(ctx context.Context, path string, after time.Duration) error {
	task, err := NewTempfileRemoveTask(path)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task,
		asynq.ProcessIn(after),
		asynq.Queue(QueueCleanup),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
