package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/f5ttsapi/internal/config"
)

func TestNewTempfileRemoveTask(t *testing.T) {
	task, err := NewTempfileRemoveTask("/tmp/f5tts-api/out-1.wav")
	require.NoError(t, err)
	assert.Equal(t, TypeTempfileRemove, task.Type())

	var p TempfileRemovePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "/tmp/f5tts-api/out-1.wav", p.Path)
}

func TestNewTempfileSweepTask(t *testing.T) {
	task, err := NewTempfileSweepTask(15 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, TypeTempfileSweep, task.Type())

	var p TempfileSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, 15*time.Minute, p.MaxAge)
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

func TestHandlersRegistryDispatch(t *testing.T) {
	r := NewHandlersRegistry()

	var got string
	r.RegisterFunc(TypeTempfileRemove, func(_ context.Context, task *asynq.Task) error {
		var p TempfileRemovePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return err
		}
		got = p.Path
		return nil
	})
	assert.Equal(t, []string{TypeTempfileRemove}, r.Types())

	task, err := NewTempfileRemoveTask("/tmp/x.wav")
	require.NoError(t, err)
	require.NoError(t, r.Mux().ProcessTask(context.Background(), task))
	assert.Equal(t, "/tmp/x.wav", got)

	// Unregistered types are rejected by the mux.
	sweep, err := NewTempfileSweepTask(time.Minute)
	require.NoError(t, err)
	assert.Error(t, r.Mux().ProcessTask(context.Background(), sweep))
}
