package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeTempfileRemove = "tempfile:remove"
	TypeTempfileSweep  = "tempfile:sweep"

	// QueueCleanup carries all file housekeeping. Nothing on it is latency sensitive.
	QueueCleanup = "low"
)

type TempfileRemovePayload struct {
	Path string `json:"path"`
}

type TempfileSweepPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

func NewTempfileRemoveTask(path string) (*asynq.Task, error) {
	return newTask(TypeTempfileRemove, TempfileRemovePayload{Path: path})
}

func NewTempfileSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	return newTask(TypeTempfileSweep, TempfileSweepPayload{MaxAge: maxAge})
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}
