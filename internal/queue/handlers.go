package queue

import (
	"context"

	"github.com/hibiken/asynq"
)

// HandlersRegistry maps task types to the handlers cmd/worker runs.
type HandlersRegistry struct {
	mux   *asynq.ServeMux
	types []string
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
	r.types = append(r.types, taskType)
}

func (r *HandlersRegistry) RegisterFunc(taskType string, fn func(context.Context, *asynq.Task) error) {
	r.Register(taskType, asynq.HandlerFunc(fn))
}

// Types lists registered task types in registration order.
func (r *HandlersRegistry) Types() []string {
	return append([]string(nil), r.types...)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
