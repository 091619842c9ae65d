package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConfirmRegistrationRequest подтверждает email токеном из письма
type ConfirmRegistrationRequest struct {
	Token string `json:"token"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
// Login and /auth/me answer with it; tokens travel only in cookies.
type UserResponse struct {
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	ID       int64    `json:"id"`
}

// UserDetailsResponse extends UserResponse with account state, for admin listing
type UserDetailsResponse struct {
	CreatedAt string `json:"created_at"` // RFC 3339
	UserResponse
	IsActive bool `json:"is_active"`
}

// ForgotPasswordRequest запрашивает письмо для сброса пароля
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest устанавливает новый пароль по токену из письма
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
