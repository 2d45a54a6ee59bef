package user

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/XB811/index12306/internal/models"
)

// HeaderNames задает заголовки, в которых шлюз передает пользователя
type HeaderNames struct {
	UserID   string
	Username string
	RealName string
}

// DefaultHeaderNames возвращает заголовки userId, username, realName
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		UserID:   models.UserIDKey,
		Username: models.UsernameKey,
		RealName: models.RealNameKey,
	}
}

type transmitOptions struct {
	headers  HeaderNames
	recorder Recorder
}

// TransmitOption настраивает TransmitMiddleware
type TransmitOption func(*transmitOptions)

// WithHeaderNames переопределяет имена заголовков.
// Пустые поля остаются по умолчанию.
func WithHeaderNames(h HeaderNames) TransmitOption {
	return func(o *transmitOptions) {
		if h.UserID != "" {
			o.headers.UserID = h.UserID
		}
		if h.Username != "" {
			o.headers.Username = h.Username
		}
		if h.RealName != "" {
			o.headers.RealName = h.RealName
		}
	}
}

// WithTransmitRecorder подключает сбор метрик
func WithTransmitRecorder(r Recorder) TransmitOption {
	return func(o *transmitOptions) {
		if r != nil {
			o.recorder = r
		}
	}
}

// TransmitMiddleware создает middleware, переносящий пользователя из
// заголовков шлюза в контекст запроса.
// Подпись здесь не проверяется: заголовки выставляет доверенный шлюз.
// Запрос без userId проходит дальше анонимным.
func TransmitMiddleware(logger *slog.Logger, opts ...TransmitOption) func(http.Handler) http.Handler {
	o := transmitOptions{
		headers:  DefaultHeaderNames(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(o.headers.UserID)
			if strings.TrimSpace(userID) == "" {
				o.recorder.RecordTransmit(false)
				next.ServeHTTP(w, r)
				return
			}

			info := models.UserInfo{
				UserID:   userID,
				Username: decodeHeader(logger, r, o.headers.Username),
				RealName: decodeHeader(logger, r, o.headers.RealName),
			}

			ctx, s := withSlot(r.Context(), info)
			// очищаем при любом выходе, в том числе при panic
			defer s.clear()

			o.recorder.RecordTransmit(true)
			logger.DebugContext(ctx, "user context installed", slog.String("user_id", userID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decodeHeader возвращает URL-декодированное значение заголовка.
// Если значение не декодируется, возвращается как есть.
// Пустое или пробельное значение дает "".
func decodeHeader(logger *slog.Logger, r *http.Request, name string) string {
	raw := r.Header.Get(name)
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	value, err := url.QueryUnescape(raw)
	if err != nil {
		logger.WarnContext(r.Context(), "failed to url-decode header",
			slog.String("header", name),
			slog.Any("error", err),
		)
		return raw
	}

	return strings.ToValidUTF8(value, "\uFFFD")
}
