package api

// TokenRequest представляет запрос на выпуск токена для пользователя
type TokenRequest struct {
	UserID   string `json:"userId"`   // идентификатор пользователя
	Username string `json:"username"` // логин, необязателен
	RealName string `json:"realName"` // ФИО, необязательно
}

// TokenResponse представляет ответ с выпущенным токеном
type TokenResponse struct {
	AccessToken string `json:"access_token"` // "Bearer " + JWT
	ExpiresIn   int64  `json:"expires_in"`   // время жизни токена в секундах
}

// UserResponse представляет пользователя текущего запроса
type UserResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RealName string `json:"realName"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
