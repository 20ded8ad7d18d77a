package handlers

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/f5ttsapi/internal/engine"
)

type HealthHandler struct {
	engine *engine.Handle
	redis  *redis.Client
}

// NewHealthHandler builds the liveness and readiness probes. rdb is nil
// unless cleanup runs through Redis.
func NewHealthHandler(h *engine.Handle, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{engine: h, redis: rdb}
}

type healthResponse struct {
	Status       string  `json:"status"`
	ModelsLoaded bool    `json:"models_loaded"`
	Device       *string `json:"device"`
}

// Health always answers 200; it reports the engine state, it does not gate on it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	if e, ok := h.engine.Get(); ok {
		device := e.Device()
		resp.ModelsLoaded = true
		resp.Device = &device
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if err := h.engine.Err(); err != nil {
		checks["engine"] = "unhealthy: " + err.Error()
	} else {
		checks["engine"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]any{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
