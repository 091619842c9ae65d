package models

import "time"

// User представляет пользователя в системе.
// Хеш пароля намеренно не входит в структуру: он читается отдельно через GetPasswordHash.
type User struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Roles     Roles     `json:"roles"`
	ID        int64     `json:"id"`
	IsActive  bool      `json:"is_active"`
}

// Identity is the caller resolved for a single request.
type Identity struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Roles    Roles  `json:"roles"`
	ID       int64  `json:"id"`
}

// Identity projects the user onto the per-request identity.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Roles:    u.Roles,
	}
}
