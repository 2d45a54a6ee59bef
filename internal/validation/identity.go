package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// UserIDPattern определяет допустимый формат идентификатора пользователя
// Латинские буквы, цифры, '-' и '_' (snowflake id, UUID)
var UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	// MaxUserIDLen максимальная длина идентификатора пользователя
	MaxUserIDLen = 64
	// MaxNameLen максимальная длина username и realName в символах
	MaxNameLen = 128
	// MinSecretLen минимальная длина ключа подписи HS512 в байтах
	MinSecretLen = 32
)

// ValidateUserID проверяет идентификатор пользователя
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	if len(userID) > MaxUserIDLen {
		return fmt.Errorf("user id must not exceed %d characters", MaxUserIDLen)
	}

	if !UserIDPattern.MatchString(userID) {
		return fmt.Errorf("user id can only contain letters, numbers, '-' and '_'")
	}

	return nil
}

// ValidateName проверяет username или realName
// Пустое значение допустимо
func ValidateName(field, value string) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s must be valid UTF-8", field)
	}

	if utf8.RuneCountInString(value) > MaxNameLen {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxNameLen)
	}

	return nil
}

// ValidateSecret проверяет ключ подписи токенов
// HS512 требует ключ не короче 256 бит
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	if len(secret) < MinSecretLen {
		return fmt.Errorf("secret must be at least %d bytes long", MinSecretLen)
	}

	return nil
}
