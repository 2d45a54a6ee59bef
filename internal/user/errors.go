package user

import "errors"

// Ошибки разбора токена
var (
	// ErrNoToken indicates that token string is empty
	ErrNoToken = errors.New("token is empty")

	// ErrTokenExpired indicates that token signature is valid but exp has passed
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed indicates that token cannot be split or decoded
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenInvalid indicates signature, algorithm or issuer mismatch
	ErrTokenInvalid = errors.New("invalid token")

	// ErrEmptyUserID indicates that identity has no user id
	ErrEmptyUserID = errors.New("user id is empty")
)
