package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/XB811/index12306/internal/models"
	"github.com/XB811/index12306/internal/user"
	"github.com/XB811/index12306/internal/validation"
	"github.com/XB811/index12306/pkg/api"
)

// maxTokenRequestBytes ограничивает размер тела запроса на выпуск токена
const maxTokenRequestBytes = 16 << 10

// TokenCodec выпускает и проверяет токены (реализуется user.Codec)
type TokenCodec interface {
	Encode(info models.UserInfo) (string, error)
	Decode(token string) *models.UserInfo
	TTL() time.Duration
}

// IssueRecorder учитывает выпущенные токены
type IssueRecorder interface {
	RecordTokenIssued()
}

// TokenHandler обрабатывает запросы выпуска и проверки токенов
type TokenHandler struct {
	logger   *slog.Logger
	codec    TokenCodec
	recorder IssueRecorder
}

// NewTokenHandler создает новый handler токенов, recorder может быть nil
func NewTokenHandler(logger *slog.Logger, codec TokenCodec, recorder IssueRecorder) *TokenHandler {
	return &TokenHandler{
		logger:   logger,
		codec:    codec,
		recorder: recorder,
	}
}

// Issue обрабатывает POST /api/v1/auth/token
// Выпускает подписанный токен для переданного пользователя
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode token request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUserID(req.UserID); err != nil {
		h.logger.WarnContext(ctx, "invalid user id", slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateName(models.UsernameKey, req.Username); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateName(models.RealNameKey, req.RealName); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.codec.Encode(models.UserInfo{
		UserID:   req.UserID,
		Username: req.Username,
		RealName: req.RealName,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmptyUserID) {
			h.sendError(w, "userId is required", http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to encode token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordTokenIssued()
	}
	h.logger.InfoContext(ctx, "token issued", slog.String("user_id", req.UserID))

	h.sendJSON(w, api.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(h.codec.TTL() / time.Second),
	}, http.StatusOK)
}

// Verify обрабатывает GET /api/v1/auth/verify
// Проверяет токен из заголовка Authorization и возвращает его пользователя
func (h *TokenHandler) Verify(w http.ResponseWriter, r *http.Request) {
	info := h.codec.Decode(r.Header.Get("Authorization"))
	if info == nil {
		h.sendError(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, toUserResponse(*info), http.StatusOK)
}

// Me обрабатывает GET /api/v1/user/me
// Возвращает пользователя, переданного шлюзом в заголовках запроса
func (h *TokenHandler) Me(w http.ResponseWriter, r *http.Request) {
	info := user.CurrentUser(r.Context())
	if info == nil {
		h.sendError(w, "user identity is required", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, toUserResponse(*info), http.StatusOK)
}

func toUserResponse(info models.UserInfo) api.UserResponse {
	return api.UserResponse{
		UserID:   info.UserID,
		Username: info.Username,
		RealName: info.RealName,
	}
}

// sendJSON отправляет JSON ответ
func (h *TokenHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *TokenHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}
