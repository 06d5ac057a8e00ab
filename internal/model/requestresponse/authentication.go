package requestresponse

// RegisterRequest : тело запроса на регистрацию нового владельца
type RegisterRequest struct {
	AdminToken string `json:"admin_token" example:"sfuqwejqjoiu93e29"`
	Login      string `json:"login" example:"admin123"`
	Password   string `json:"password" example:"P@ssw0rd123"`
	Role       string `json:"role" example:"editor"`
}

// LoginRequest : тело запроса на аутентификацию
type LoginRequest struct {
	Login    string `json:"login" example:"admin123"`
	Password string `json:"password" example:"P@ssw0rd123"`
}

// RefreshTokenRequest : запрос на обновление пары токенов
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"sfuqwejqjoiu93e29"`
}

// TokensResponse : ответ с парой токенов
type TokensResponse struct {
	Response struct {
		AccessToken  string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		RefreshToken string `json:"refresh_token" example:"sfuqwejqjoiu93e29"`
	} `json:"response"`
}

// CurrentUserResponse : информация о текущем пользователе
type CurrentUserResponse struct {
	Response struct {
		UserUUID string `json:"user_uuid" example:"b6a1e1c4-4b1d-4f1e-8b29-1234567890ab"`
	} `json:"response"`
}
