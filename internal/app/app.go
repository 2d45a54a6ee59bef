// Package app собирает зависимости сервиса и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/XB811/index12306/internal/config"
	"github.com/XB811/index12306/internal/lifecycle"
	"github.com/XB811/index12306/internal/metrics"
	"github.com/XB811/index12306/internal/models"
	"github.com/XB811/index12306/internal/registry"
	"github.com/XB811/index12306/internal/server"
	"github.com/XB811/index12306/internal/server/middleware"
	"github.com/XB811/index12306/internal/user"
)

// Ключи объектов в реестре
const (
	KeyPrometheus  = "prometheus.registry"
	KeyMetrics     = "metrics.collector"
	KeyCodec       = "user.codec"
	KeyRateLimiter = "middleware.ratelimiter"
)

// selfCheckUserID идентификатор, которым проверяется кодек при старте
const selfCheckUserID = "startup-self-check"

// App HTTP сервис index12306
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *registry.Registry
	bootstrap *lifecycle.Bootstrap
	limiter   *middleware.RateLimiter
	handler   http.Handler
}

// New собирает приложение из конфигурации.
// Общие объекты создаются через реестр, поэтому каждый существует в одном экземпляре.
func New(cfg *config.Config, logger *slog.Logger, version string) *App {
	reg := registry.New()

	promReg := registry.GetOrCreateAs(reg, KeyPrometheus, prometheus.NewRegistry)
	collector := registry.GetOrCreateAs(reg, KeyMetrics, func() *metrics.Collector {
		return metrics.NewCollector(promReg)
	})
	codec := registry.GetOrCreateAs(reg, KeyCodec, func() *user.Codec {
		return user.NewCodec(user.CodecConfig{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.JWT.TTL,
		}, logger, user.WithRecorder(collector))
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = registry.GetOrCreateAs(reg, KeyRateLimiter, func() *middleware.RateLimiter {
			return middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute, logger, collector)
		})
	}

	handler := server.NewRouter(server.RouterDeps{
		Logger: logger,
		Codec:  codec,
		Headers: user.HeaderNames{
			UserID:   cfg.Headers.UserID,
			Username: cfg.Headers.Username,
			RealName: cfg.Headers.RealName,
		},
		RateLimiter: limiter,
		Recorder:    collector,
		Metrics:     metrics.Handler(promReg),
		Version:     version,
	})

	a := &App{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		bootstrap: lifecycle.New(logger, reg),
		limiter:   limiter,
		handler:   handler,
	}

	a.bootstrap.OnReady("runtime-metrics", registerRuntimeMetrics)
	a.bootstrap.OnReady("codec-self-check", checkCodec)
	a.bootstrap.OnReady("log-registry", a.logRegistry)

	return a
}

// Handler возвращает корневой HTTP handler
func (a *App) Handler() http.Handler {
	return a.handler
}

// Registry возвращает реестр объектов приложения
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Bootstrap возвращает хуки готовности, чтобы добавить свои до Run
func (a *App) Bootstrap() *lifecycle.Bootstrap {
	return a.bootstrap
}

// Run слушает адрес из конфигурации до отмены ctx.
// Хуки готовности выполняются один раз, после того как порт открыт.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve обслуживает запросы на ln до отмены ctx, затем выполняет graceful shutdown
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.limiter != nil {
		defer a.limiter.Stop()
	}

	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if _, err := a.bootstrap.Ready(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("startup failed: %w", err)
	}

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.logger.Info("API server stopped")
	return nil
}

// registerRuntimeMetrics добавляет метрики Go runtime и процесса
func registerRuntimeMetrics(_ context.Context, reg *registry.Registry) error {
	promReg, ok := registry.Lookup[*prometheus.Registry](reg, KeyPrometheus)
	if !ok {
		return errors.New("prometheus registry is not configured")
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := promReg.Register(c); err != nil {
			return fmt.Errorf("failed to register runtime collector: %w", err)
		}
	}
	return nil
}

// checkCodec выпускает и сразу разбирает проверочный токен
func checkCodec(_ context.Context, reg *registry.Registry) error {
	codec, ok := registry.Lookup[*user.Codec](reg, KeyCodec)
	if !ok {
		return errors.New("token codec is not configured")
	}

	token, err := codec.Encode(models.UserInfo{UserID: selfCheckUserID})
	if err != nil {
		return fmt.Errorf("codec cannot sign tokens: %w", err)
	}
	if _, err := codec.Parse(token); err != nil {
		return fmt.Errorf("codec cannot verify its own token: %w", err)
	}
	return nil
}

func (a *App) logRegistry(ctx context.Context, reg *registry.Registry) error {
	a.logger.InfoContext(ctx, "registry initialized",
		slog.Int("objects", reg.Len()),
		slog.Any("keys", reg.Keys()),
	)
	return nil
}
