package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/XB811/index12306/internal/user"
	"github.com/XB811/index12306/pkg/api"
)

// RateLimitRecorder учитывает отклоненные запросы
type RateLimitRecorder interface {
	RecordRateLimited()
}

// RateLimiter ограничивает частоту запросов по ключу (пользователь или IP)
// Для каждого ключа хранится отдельный token bucket из golang.org/x/time/rate.
type RateLimiter struct {
	visitors map[string]*visitor
	logger   *slog.Logger
	recorder RateLimitRecorder
	cleanupC chan struct{}
	stopOnce sync.Once
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	mu       sync.Mutex
}

// visitor bucket конкретного ключа
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает новый rate limiter
// rps - средняя частота запросов в секунду, burst - размер всплеска,
// idleTTL - через сколько неактивный ключ удаляется из памяти.
// recorder может быть nil.
func NewRateLimiter(rps float64, burst int, idleTTL time.Duration, logger *slog.Logger, recorder RateLimitRecorder) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		logger:   logger,
		recorder: recorder,
		cleanupC: make(chan struct{}),
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
	}

	// Запускаем периодическую очистку старых ключей
	go rl.cleanup()

	return rl
}

// cleanup периодически удаляет неактивные ключи для экономии памяти
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evictIdle(now)
		case <-rl.cleanupC:
			return
		}
	}
}

// evictIdle удаляет ключи, не использовавшиеся дольше idleTTL
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
		}
	}
}

// Stop останавливает cleanup goroutine, повторный вызов безопасен
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

// Len возвращает количество отслеживаемых ключей
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	return rl.reserve(key, time.Now()) == 0
}

// reserve возвращает 0, если запрос разрешен, иначе время до следующего токена
func (rl *RateLimiter) reserve(key string, now time.Time) time.Duration {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Duration(math.MaxInt64)
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		// Токен не расходуем, запрос все равно будет отклонен
		r.CancelAt(now)
	}
	return delay
}

// Middleware возвращает HTTP middleware
// Ключ - идентификатор текущего пользователя, для анонимных запросов - IP клиента.
// Должен стоять после TransmitMiddleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)

			delay := rl.reserve(key, time.Now())
			if delay > 0 {
				rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
					"key", key,
					"method", r.Method,
					"path", r.URL.Path,
				)
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited()
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{
					Error:   http.StatusText(http.StatusTooManyRequests),
					Message: "rate limit exceeded, please try again later",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitKey выбирает ключ ограничения для запроса
func rateLimitKey(r *http.Request) string {
	if id := user.UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + getClientIP(r)
}

// retryAfterSeconds округляет задержку вверх до целых секунд
func retryAfterSeconds(delay time.Duration) int {
	if delay >= time.Hour {
		return int(time.Hour / time.Second)
	}
	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	// Берем первый IP из X-Forwarded-For (реальный клиент)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr без порта
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
