// Package config загружает настройки из YAML файла и переменных окружения.
// Переменные окружения имеют приоритет над файлом.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/XB811/index12306/internal/models"
	"github.com/XB811/index12306/internal/validation"
)

// Config содержит настройки приложения.
// Загружается один раз при старте, дальше только читается.
type Config struct {
	JWT       JWTConfig       `yaml:"jwt"`
	Server    ServerConfig    `yaml:"server"`
	Headers   HeadersConfig   `yaml:"headers"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig настройки выпуска токенов
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

// ServerConfig настройки HTTP сервера
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HeadersConfig имена заголовков, в которых шлюз передает пользователя
type HeadersConfig struct {
	UserID   string `yaml:"user_id"`
	Username string `yaml:"username"`
	RealName string `yaml:"real_name"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level string `yaml:"level"`
}

// RateLimitConfig ограничение частоты запросов на пользователя (или IP).
// RPS = 0 отключает ограничение.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default возвращает конфигурацию по умолчанию (без секрета)
func Default() *Config {
	return &Config{
		JWT: JWTConfig{
			Issuer: "index12306",
			TTL:    86400 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Headers: HeadersConfig{
			UserID:   models.UserIDKey,
			Username: models.UsernameKey,
			RealName: models.RealNameKey,
		},
		Log: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
	}
}

// Load читает конфигурацию.
// path может быть пустым, тогда используются только значения по умолчанию и окружение.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	envErr := cfg.applyEnv()

	// ошибки окружения и валидации показываем вместе
	if err := errors.Join(envErr, cfg.Validate()); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnv переопределяет поля из окружения.
// Значения, которые не удалось разобрать, не применяются и возвращаются ошибкой.
func (c *Config) applyEnv() error {
	env := &envReader{}

	c.JWT.Secret = getEnvString("JWT_SECRET", c.JWT.Secret)
	c.JWT.Issuer = getEnvString("JWT_ISSUER", c.JWT.Issuer)
	c.JWT.TTL = env.getDuration("JWT_TTL", c.JWT.TTL)

	c.Server.Addr = getEnvString("SERVER_ADDR", c.Server.Addr)

	c.Headers.UserID = getEnvString("HEADER_USER_ID", c.Headers.UserID)
	c.Headers.Username = getEnvString("HEADER_USERNAME", c.Headers.Username)
	c.Headers.RealName = getEnvString("HEADER_REAL_NAME", c.Headers.RealName)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)

	c.RateLimit.RPS = env.getFloat("RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = env.getInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	return errors.Join(env.errs...)
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	var errs []error

	if err := validation.ValidateSecret(c.JWT.Secret); err != nil {
		errs = append(errs, fmt.Errorf("jwt.secret: %w", err))
	}
	if c.JWT.Issuer == "" {
		errs = append(errs, errors.New("jwt.issuer: cannot be empty"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt.ttl: must be positive"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: cannot be empty"))
	}
	if c.Headers.UserID == "" {
		errs = append(errs, errors.New("headers.user_id: cannot be empty"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps: must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate_limit.burst: must be at least 1"))
	}

	return errors.Join(errs...)
}

// SlogLevel переводит уровень из конфигурации в slog.Level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envReader разбирает числовые переменные окружения и копит ошибки разбора
type envReader struct {
	errs []error
}

func (e *envReader) getInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return i
}

func (e *envReader) getFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return defaultVal
	}
	return f
}

func (e *envReader) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}
