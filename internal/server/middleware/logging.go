package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/XB811/index12306/internal/user"
)

// StatusRecorder учитывает коды ответов (реализуется metrics.Collector)
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the number of bytes written
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap дает http.ResponseController доступ к исходному writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware создает middleware для логирования HTTP запросов
// Логирует метод, путь, статус, время выполнения, размер ответа и пользователя.
// Заголовок Authorization и имена пользователя в лог не попадают.
// Ставится после TransmitMiddleware, чтобы видеть user_id до очистки контекста.
// recorder может быть nil.
func LoggingMiddleware(logger *slog.Logger, recorder StatusRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// user_id читаем до вызова next: после него слот может быть очищен
			userID := user.UserID(r.Context())

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // default status
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			// Определяем уровень логирования на основе статуса
			logLevel := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				logLevel = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				logLevel = slog.LevelWarn
			}

			if recorder != nil {
				recorder.RecordHTTPStatus(wrapped.statusCode)
			}

			logger.Log(r.Context(), logLevel, "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"request_id", RequestIDFromContext(r.Context()),
				"user_id", userID,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"bytes_written", wrapped.written,
			)
		})
	}
}

// LoggingWithSkip создает middleware с возможностью пропуска определенных путей
// Полезно для health checks и /metrics. Для пропущенных путей не пишется
// только лог, статус ответа по-прежнему попадает в recorder.
func LoggingWithSkip(logger *slog.Logger, recorder StatusRecorder, skipPaths []string) func(http.Handler) http.Handler {
	skipMap := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skipMap[path] = true
	}

	return func(next http.Handler) http.Handler {
		logged := LoggingMiddleware(logger, recorder)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipMap[r.URL.Path] {
				if recorder == nil {
					next.ServeHTTP(w, r)
					return
				}
				wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
				next.ServeHTTP(wrapped, r)
				recorder.RecordHTTPStatus(wrapped.statusCode)
				return
			}
			logged.ServeHTTP(w, r)
		})
	}
}
