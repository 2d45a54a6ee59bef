package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/XB811/index12306/internal/user"
	"github.com/XB811/index12306/pkg/api"
)

// RequireUser пропускает только запросы, для которых шлюз передал пользователя
// Подпись здесь не проверяется: заголовки userId выставляет доверенный шлюз.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user.CurrentUser(r.Context()) == nil {
				logger.WarnContext(r.Context(), "Missing user identity",
					"method", r.Method,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{
					Error:   http.StatusText(http.StatusUnauthorized),
					Message: "user identity is required",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
