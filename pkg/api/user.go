package api

import "errors"

// ErrInvalidUpdate is returned when an update request matches no variant,
// or more than one
var ErrInvalidUpdate = errors.New(
	"exactly one of {current_password, new_password}, {email, current_password} or {username} is required")

// UpdateUserRequest is the body of PATCH /users/me. It is a tagged union
// discriminated by which fields are present; see Variant.
type UpdateUserRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
	Email           string `json:"email,omitempty"`
	Username        string `json:"username,omitempty"`
}

// UpdateVariant is one of PasswordChange, EmailChange or UsernameChange
type UpdateVariant interface {
	updateVariant()
}

// PasswordChange replaces the password after checking the current one
type PasswordChange struct {
	CurrentPassword string
	NewPassword     string
}

// EmailChange replaces the email after checking the current password
type EmailChange struct {
	Email           string
	CurrentPassword string
}

// UsernameChange replaces the username
type UsernameChange struct {
	Username string
}

func (PasswordChange) updateVariant() {}
func (EmailChange) updateVariant()    {}
func (UsernameChange) updateVariant() {}

// Variant returns the single variant whose field set is exactly present
func (r UpdateUserRequest) Variant() (UpdateVariant, error) {
	hasCurrent := r.CurrentPassword != ""
	hasNew := r.NewPassword != ""
	hasEmail := r.Email != ""
	hasUsername := r.Username != ""

	switch {
	case hasCurrent && hasNew && !hasEmail && !hasUsername:
		return PasswordChange{CurrentPassword: r.CurrentPassword, NewPassword: r.NewPassword}, nil
	case hasCurrent && hasEmail && !hasNew && !hasUsername:
		return EmailChange{Email: r.Email, CurrentPassword: r.CurrentPassword}, nil
	case hasUsername && !hasCurrent && !hasNew && !hasEmail:
		return UsernameChange{Username: r.Username}, nil
	default:
		return nil, ErrInvalidUpdate
	}
}
