package user

import (
	"context"
	"sync/atomic"

	"github.com/XB811/index12306/internal/models"
)

type contextKey struct {
	name string
}

var userSlotKey = &contextKey{"user"}

// slot хранит пользователя текущего запроса.
// После завершения запроса очищается, поэтому контекст,
// переживший запрос, пользователя уже не видит.
type slot struct {
	user atomic.Pointer[models.UserInfo]
}

func (s *slot) clear() {
	s.user.Store(nil)
}

func withSlot(ctx context.Context, info models.UserInfo) (context.Context, *slot) {
	s := &slot{}
	s.user.Store(&info)
	return context.WithValue(ctx, userSlotKey, s), s
}

// WithUser кладет пользователя в контекст.
// Используется в тестах и фоновых задачах, где нет HTTP запроса.
func WithUser(ctx context.Context, info models.UserInfo) context.Context {
	ctx, _ = withSlot(ctx, info)
	return ctx
}

// FromContext извлекает пользователя из контекста
func FromContext(ctx context.Context) (*models.UserInfo, bool) {
	s, ok := ctx.Value(userSlotKey).(*slot)
	if !ok {
		return nil, false
	}

	u := s.user.Load()
	if u == nil {
		return nil, false
	}

	// копия, чтобы вызывающий не мог изменить пользователя запроса
	info := *u
	return &info, true
}

// CurrentUser возвращает пользователя текущего запроса или nil
func CurrentUser(ctx context.Context) *models.UserInfo {
	info, _ := FromContext(ctx)
	return info
}

// UserID возвращает идентификатор текущего пользователя или ""
func UserID(ctx context.Context) string {
	if info, ok := FromContext(ctx); ok {
		return info.UserID
	}
	return ""
}

// Username возвращает логин текущего пользователя или ""
func Username(ctx context.Context) string {
	if info, ok := FromContext(ctx); ok {
		return info.Username
	}
	return ""
}

// RealName возвращает ФИО текущего пользователя или ""
func RealName(ctx context.Context) string {
	if info, ok := FromContext(ctx); ok {
		return info.RealName
	}
	return ""
}
