package storage

import (
	"context"
	"time"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/opaque"
)

// CreateUserParams holds the fields of a new user row
type CreateUserParams struct {
	// RegistrationToken, when set, makes the account inactive until confirmed
	RegistrationToken *opaque.Token
	Email             string
	Username          string
	PasswordHash      string
	Roles             models.Roles
}

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage.
	// Returns ErrUserAlreadyExists if the email (case-insensitive) is taken
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)

	// RenewRegistration replaces credentials and registration token of a
	// not yet confirmed account with the same email, so the previous token
	// stops working. Returns ErrUserAlreadyExists if the account is active
	RenewRegistration(ctx context.Context, params CreateUserParams) (*models.User, error)

	// GetUserByEmail retrieves user by email, compared case-insensitively
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)

	// ListUsers returns all users ordered by ID
	ListUsers(ctx context.Context) ([]*models.User, error)

	// GetPasswordHash returns the stored password hash of a user
	// Returns ErrUserNotFound if user doesn't exist
	GetPasswordHash(ctx context.Context, userID int64) (string, error)

	// ActivateUser marks the owner of an unexpired registration token active
	// and clears the token in a single statement.
	// Returns ErrTokenNotFound if no row matched
	ActivateUser(ctx context.Context, token string, now time.Time) (*models.User, error)

	// SetRegistrationToken replaces the registration token of an inactive user.
	// Returns ErrUserNotFound if no inactive user has this ID
	SetRegistrationToken(ctx context.Context, userID int64, token opaque.Token) error

	// SetResetToken stores a password reset token, replacing any previous one
	SetResetToken(ctx context.Context, userID int64, token opaque.Token) error

	// ResetPassword replaces the password of the owner of an unexpired reset
	// token and clears the token in a single statement.
	// Returns ErrTokenNotFound if no row matched
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (int64, error)

	// UpdatePasswordHash replaces the password hash
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error

	// UpdateEmail changes the email.
	// Returns ErrUserAlreadyExists if the email is taken by another user
	UpdateEmail(ctx context.Context, userID int64, email string) error

	// UpdateUsername changes the username
	UpdateUsername(ctx context.Context, userID int64, username string) error

	// UpdateRoles replaces the role set
	UpdateRoles(ctx context.Context, userID int64, roles models.Roles) error

	// DeleteUser deletes user by ID together with its tracking data
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID int64) error
}
