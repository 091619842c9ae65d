package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/opaque"
	"github.com/iudanet/trackmail/internal/server/storage"
)

const userColumns = `id, email, username, roles, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		roles     string
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&roles,
		&user.IsActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := models.ParseRoles(roles)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	user.Roles = parsed
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &user, nil
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, params storage.CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (email, username, password_hash, roles, is_active,
			registration_token, registration_token_exp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + userColumns

	roles := params.Roles
	if len(roles) == 0 {
		roles = models.NewRoles()
	}

	// Аккаунт без registration token активен сразу (например, созданный администратором)
	var (
		token    sql.NullString
		tokenExp sql.NullInt64
		active   = true
	)
	if params.RegistrationToken != nil {
		token = sql.NullString{String: params.RegistrationToken.Value, Valid: true}
		tokenExp = sql.NullInt64{Int64: params.RegistrationToken.ExpiresAt.Unix(), Valid: true}
		active = false
	}

	now := s.now().Unix()
	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		strings.TrimSpace(params.Email),
		params.Username,
		params.PasswordHash,
		roles.String(),
		active,
		token,
		tokenExp,
		now,
		now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// RenewRegistration overwrites a pending registration for params.Email with
// new credentials and a new token. Active accounts are left untouched and
// reported as ErrUserAlreadyExists.
func (s *Storage) RenewRegistration(ctx context.Context, params storage.CreateUserParams) (*models.User, error) {
	if params.RegistrationToken == nil {
		return nil, errors.New("registration token is required")
	}

	query := `
		UPDATE users
		SET username = ?, password_hash = ?, registration_token = ?, registration_token_exp = ?, updated_at = ?
		WHERE lower(email) = lower(?) AND is_active = 0
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		params.Username,
		params.PasswordHash,
		params.RegistrationToken.Value,
		params.RegistrationToken.ExpiresAt.Unix(),
		s.now().Unix(),
		strings.TrimSpace(params.Email),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to renew registration: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower(?)`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ListUsers returns all users ordered by ID
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

// GetPasswordHash returns the stored password hash
func (s *Storage) GetPasswordHash(ctx context.Context, userID int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get password hash: %w", err)
	}
	return hash, nil
}

// ActivateUser consumes a registration token: the row is activated and the
// token cleared by the same statement, so a value can succeed only once.
func (s *Storage) ActivateUser(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, storage.ErrTokenNotFound
	}

	query := `
		UPDATE users
		SET is_active = 1, registration_token = NULL, registration_token_exp = NULL, updated_at = ?
		WHERE registration_token = ? AND registration_token IS NOT NULL AND registration_token_exp > ?
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, now.Unix(), token, now.Unix()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	return user, nil
}

// SetResetToken stores a password reset token, replacing any previous one
func (s *Storage) SetResetToken(ctx context.Context, userID int64, token opaque.Token) error {
	query := `UPDATE users SET reset_token = ?, reset_token_exp = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, token.Value, token.ExpiresAt.Unix(), s.now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireOneRow(result, storage.ErrUserNotFound)
}

// SetRegistrationToken replaces the registration token of an inactive user
func (s *Storage) SetRegistrationToken(ctx context.Context, userID int64, token opaque.Token) error {
	query := `
		UPDATE users SET registration_token = ?, registration_token_exp = ?, updated_at = ?
		WHERE id = ? AND is_active = 0`

	result, err := s.db.ExecContext(ctx, query, token.Value, token.ExpiresAt.Unix(), s.now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("failed to set registration token: %w", err)
	}

	return requireOneRow(result, storage.ErrUserNotFound)
}

// ResetPassword consumes a reset token and stores the new password hash in
// one statement. Returns the ID of the affected user.
func (s *Storage) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (int64, error) {
	if token == "" {
		return 0, storage.ErrTokenNotFound
	}

	query := `
		UPDATE users
		SET password_hash = ?, reset_token = NULL, reset_token_exp = NULL, updated_at = ?
		WHERE reset_token = ? AND reset_token IS NOT NULL AND reset_token_exp > ?
		RETURNING id`

	var userID int64
	err := s.db.QueryRowContext(ctx, query, passwordHash, now.Unix(), token, now.Unix()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrTokenNotFound
		}
		return 0, fmt.Errorf("failed to reset password: %w", err)
	}

	return userID, nil
}

// UpdatePasswordHash replaces the password hash
func (s *Storage) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	return s.updateColumn(ctx, "password_hash", userID, passwordHash)
}

// UpdateEmail changes the email
func (s *Storage) UpdateEmail(ctx context.Context, userID int64, email string) error {
	err := s.updateColumn(ctx, "email", userID, strings.TrimSpace(email))
	if err != nil && isUniqueViolation(err) {
		return storage.ErrUserAlreadyExists
	}
	return err
}

// UpdateUsername changes the username
func (s *Storage) UpdateUsername(ctx context.Context, userID int64, username string) error {
	return s.updateColumn(ctx, "username", userID, username)
}

// UpdateRoles replaces the role set
func (s *Storage) UpdateRoles(ctx context.Context, userID int64, roles models.Roles) error {
	return s.updateColumn(ctx, "roles", userID, models.NewRoles(roles...).String())
}

// updateColumn sets one column of a user row. column is never user input.
func (s *Storage) updateColumn(ctx context.Context, column string, userID int64, value any) error {
	query := `UPDATE users SET ` + column + ` = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, value, s.now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	return requireOneRow(result, storage.ErrUserNotFound)
}

// DeleteUser deletes user by ID
func (s *Storage) DeleteUser(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return requireOneRow(result, storage.ErrUserNotFound)
}

func requireOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound
	}

	return nil
}
