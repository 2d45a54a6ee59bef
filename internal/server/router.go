package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/XB811/index12306/internal/server/handlers"
	"github.com/XB811/index12306/internal/server/middleware"
	"github.com/XB811/index12306/internal/user"
)

// Recorder объединяет метрики, которые пишут handlers и middleware
type Recorder interface {
	user.Recorder
	middleware.StatusRecorder
	middleware.RateLimitRecorder
	handlers.IssueRecorder
}

// RouterDeps зависимости для NewRouter
type RouterDeps struct {
	Logger      *slog.Logger
	Codec       handlers.TokenCodec
	Headers     user.HeaderNames
	RateLimiter *middleware.RateLimiter
	Recorder    Recorder     // может быть nil
	Metrics     http.Handler // может быть nil, тогда /metrics не регистрируется
	Version     string
}

// NewRouter собирает chi.Router со всеми маршрутами и цепочкой middleware.
//
// Порядок middleware:
//
//	Recovery → RequestID → UserTransmit → Logging → RateLimit
//
// UserTransmit стоит перед Logging и RateLimit, чтобы оба видели
// пользователя запроса, а Recovery снаружи, чтобы пользователь
// был очищен до обработки паники.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	var (
		statuses middleware.StatusRecorder
		issued   handlers.IssueRecorder
	)
	transmitOpts := []user.TransmitOption{user.WithHeaderNames(deps.Headers)}
	if deps.Recorder != nil {
		statuses = deps.Recorder
		issued = deps.Recorder
		transmitOpts = append(transmitOpts, user.WithTransmitRecorder(deps.Recorder))
	}

	r.Use(middleware.RecoveryMiddleware(deps.Logger))
	r.Use(middleware.RequestIDMiddleware)
	r.Use(user.TransmitMiddleware(deps.Logger, transmitOpts...))
	r.Use(middleware.LoggingWithSkip(deps.Logger, statuses, []string{"/api/v1/health", "/metrics"}))

	healthHandler := handlers.NewHealthHandler(deps.Logger, deps.Version)
	tokenHandler := handlers.NewTokenHandler(deps.Logger, deps.Codec, issued)

	// Служебные маршруты без ограничения частоты
	r.Get("/api/v1/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Post("/token", tokenHandler.Issue)
			r.Get("/verify", tokenHandler.Verify)
		})

		// Маршруты, требующие пользователя от шлюза
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(deps.Logger))
			r.Get("/api/v1/user/me", tokenHandler.Me)
		})
	})

	return r
}
