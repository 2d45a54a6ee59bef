package models

// Ключи заголовков и claims, через которые передается пользователь.
// Шлюз кладет их в заголовки запроса, JWT хранит их в claims.
const (
	UserIDKey   = "userId"
	UsernameKey = "username"
	RealNameKey = "realName"
)

// UserInfo представляет пользователя, от имени которого выполняется запрос
type UserInfo struct {
	UserID   string `json:"userId"`   // идентификатор пользователя, обязателен
	Username string `json:"username"` // логин, может быть пустым
	RealName string `json:"realName"` // ФИО, может быть пустым
}

// IsAnonymous сообщает, что идентификатор пользователя не задан
func (u UserInfo) IsAnonymous() bool {
	return u.UserID == ""
}
