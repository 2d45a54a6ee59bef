package user

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/XB811/index12306/internal/models"
)

const (
	// TokenPrefix префикс токена в заголовке Authorization
	TokenPrefix = "Bearer "
	// DefaultIssuer издатель токенов по умолчанию
	DefaultIssuer = "index12306"
	// DefaultTTL время жизни токена по умолчанию
	DefaultTTL = 86400 * time.Second
)

// UserClaims представляет JWT claims с данными пользователя
type UserClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RealName string `json:"realName"`
	jwt.RegisteredClaims
}

// UserInfo возвращает пользователя из claims
func (c *UserClaims) UserInfo() models.UserInfo {
	return models.UserInfo{
		UserID:   c.UserID,
		Username: c.Username,
		RealName: c.RealName,
	}
}

// CodecConfig содержит конфигурацию для JWT
type CodecConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Codec выпускает и разбирает токены пользователя (HS512)
type Codec struct {
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	issuer   string
	secret   []byte
	ttl      time.Duration
}

// CodecOption настраивает Codec
type CodecOption func(*Codec)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// WithRecorder подключает сбор метрик декодирования
func WithRecorder(r Recorder) CodecOption {
	return func(c *Codec) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewCodec создает новый кодек токенов
// Пустые Issuer и TTL заменяются значениями по умолчанию
func NewCodec(cfg CodecConfig, logger *slog.Logger, opts ...CodecOption) *Codec {
	c := &Codec{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		ttl:      cfg.TTL,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	if c.issuer == "" {
		c.issuer = DefaultIssuer
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TTL возвращает время жизни выпускаемых токенов
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode создает новый токен с префиксом "Bearer "
func (c *Codec) Encode(info models.UserInfo) (string, error) {
	if strings.TrimSpace(info.UserID) == "" {
		return "", ErrEmptyUserID
	}

	now := c.now()
	claims := UserClaims{
		UserID:   info.UserID,
		Username: info.Username,
		RealName: info.RealName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return TokenPrefix + tokenString, nil
}

// Parse валидирует токен и возвращает claims.
// Префикс "Bearer " необязателен.
func (c *Codec) Parse(tokenString string) (*UserClaims, error) {
	// сначала префикс, иначе от "Bearer " после trim останется "Bearer"
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(tokenString, " \t"), TokenPrefix))
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := &UserClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, classifyError(err)
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrEmptyUserID
	}

	return claims, nil
}

// Decode возвращает пользователя из токена или nil.
// Ошибки не пробрасываются: отсутствие пользователя штатная ситуация.
func (c *Codec) Decode(tokenString string) *models.UserInfo {
	claims, err := c.Parse(tokenString)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoToken):
			c.recorder.RecordDecode(OutcomeAbsent)
		case errors.Is(err, ErrTokenExpired):
			// истекший токен не ошибка, просто анонимный запрос
			c.recorder.RecordDecode(OutcomeExpired)
		case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrEmptyUserID):
			c.logger.Debug("token rejected", slog.Any("error", err))
			c.recorder.RecordDecode(OutcomeInvalid)
		default:
			c.logger.Error("failed to decode token", slog.Any("error", err))
			c.recorder.RecordDecode(OutcomeError)
		}
		return nil
	}

	c.recorder.RecordDecode(OutcomeOK)
	info := claims.UserInfo()
	return &info
}

// classifyError сводит ошибки jwt к ошибкам пакета.
// Чужой издатель или подпись важнее истечения срока: такой токен
// считается недействительным, даже если он к тому же истек.
func classifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	default:
		return fmt.Errorf("failed to parse token: %w", err)
	}
}
