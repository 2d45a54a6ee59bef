// Package lifecycle запускает инициализацию приложения после старта.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/XB811/index12306/internal/registry"
)

// Hook выполняется один раз, когда приложение готово принимать запросы
type Hook func(ctx context.Context, reg *registry.Registry) error

type namedHook struct {
	fn   Hook
	name string
}

// Bootstrap хранит хуки готовности и гарантирует их однократный запуск
type Bootstrap struct {
	logger   *slog.Logger
	registry *registry.Registry
	hooks    []namedHook
	mu       sync.Mutex
	fired    atomic.Bool
}

// New создает Bootstrap поверх реестра объектов
func New(logger *slog.Logger, reg *registry.Registry) *Bootstrap {
	return &Bootstrap{
		logger:   logger,
		registry: reg,
	}
}

// Registry возвращает реестр, доступный хукам
func (b *Bootstrap) Registry() *registry.Registry {
	return b.registry
}

// OnReady регистрирует хук. Хуки выполняются в порядке регистрации.
// Хук, добавленный после Ready, не выполняется.
func (b *Bootstrap) OnReady(name string, hook Hook) {
	if b.fired.Load() {
		b.logger.Warn("ready hook registered after startup, ignored", slog.String("hook", name))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, namedHook{name: name, fn: hook})
}

// IsReady сообщает, был ли уже вызван Ready
func (b *Bootstrap) IsReady() bool {
	return b.fired.Load()
}

// Ready выполняет хуки. Повторные вызовы ничего не делают и возвращают false.
// Ошибка хука прерывает последовательность.
func (b *Bootstrap) Ready(ctx context.Context) (bool, error) {
	if !b.fired.CompareAndSwap(false, true) {
		return false, nil
	}

	b.mu.Lock()
	hooks := make([]namedHook, len(b.hooks))
	copy(hooks, b.hooks)
	b.mu.Unlock()

	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return true, fmt.Errorf("ready hook %q: %w", h.name, err)
		}
		if err := h.fn(ctx, b.registry); err != nil {
			return true, fmt.Errorf("ready hook %q: %w", h.name, err)
		}
		b.logger.DebugContext(ctx, "ready hook completed", slog.String("hook", h.name))
	}

	b.logger.InfoContext(ctx, "application ready", slog.Int("hooks", len(hooks)))
	return true, nil
}
