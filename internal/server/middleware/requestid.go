package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader заголовок, через который передается идентификатор запроса
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen ограничивает длину идентификатора, пришедшего от клиента
const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestIDMiddleware присваивает запросу идентификатор
// Берет X-Request-ID от шлюза, если он есть, иначе генерирует UUID
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext возвращает идентификатор запроса или пустую строку
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
