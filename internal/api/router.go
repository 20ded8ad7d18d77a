package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/f5ttsapi/internal/api/handlers"
	"github.com/nikhilbhutani/f5ttsapi/internal/api/middleware"
	"github.com/nikhilbhutani/f5ttsapi/internal/config"
	"github.com/nikhilbhutani/f5ttsapi/internal/engine"
)

type Router struct {
	mux    *chi.Mux
	cfg    *config.Config
	engine *engine.Handle
	synth  handlers.Synthesizer
	redis  *redis.Client
	logger *slog.Logger

	limiter *middleware.RateLimiter
}

// NewRouter wires the HTTP surface. rdb may be nil when cleanup runs in process.
func NewRouter(cfg *config.Config, h *engine.Handle, synth handlers.Synthesizer, rdb *redis.Client, logger *slog.Logger) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		cfg:    cfg,
		engine: h,
		synth:  synth,
		redis:  rdb,
		logger: logger,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORSAllowedOrigins))

	health := handlers.NewHealthHandler(rt.engine, rt.redis)
	r.Get("/", handlers.Landing)
	r.Get("/openapi.json", handlers.OpenAPI)
	r.Get("/health", health.Health)
	r.Get("/readyz", health.Readyz)

	tts := handlers.NewTTSHandler(rt.synth, rt.cfg.Files.MaxUploadBytes, rt.logger)
	r.Group(func(r chi.Router) {
		if rt.cfg.RateLimit.RPS > 0 {
			rt.limiter = middleware.NewRateLimiter(rt.cfg.RateLimit.RPS, rt.cfg.RateLimit.Burst)
			r.Use(rt.limiter.Limit)
		}
		r.Post("/tts/generate", tts.Generate)
	})

	return r
}

// Close releases background resources owned by the middleware stack.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Close()
	}
}
