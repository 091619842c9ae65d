package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/storage"
)

// EnsureTrackMailToken stores candidate unless the user already has a token.
// The insert is a no-op on conflict, so every concurrent caller reads back
// the single stored value.
func (s *Storage) EnsureTrackMailToken(ctx context.Context, userID int64, candidate string) (string, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trackmail_tokens (user_id, token, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, candidate, s.now().Unix(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return "", storage.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to insert trackmail token: %w", err)
	}

	var token string
	err = s.db.QueryRowContext(ctx, `SELECT token FROM trackmail_tokens WHERE user_id = ?`, userID).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("failed to read trackmail token: %w", err)
	}

	return token, nil
}

// ReplaceTrackMailToken overwrites the user's token
func (s *Storage) ReplaceTrackMailToken(ctx context.Context, userID int64, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trackmail_tokens (user_id, token, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET token = excluded.token, created_at = excluded.created_at`,
		userID, token, s.now().Unix(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrUserNotFound
		}
		return fmt.Errorf("failed to replace trackmail token: %w", err)
	}
	return nil
}

// GetUserIDByTrackMailToken resolves a bearer token to its owner
func (s *Storage) GetUserIDByTrackMailToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, storage.ErrTokenNotFound
	}

	var userID int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM trackmail_tokens WHERE token = ?`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrTokenNotFound
		}
		return 0, fmt.Errorf("failed to resolve trackmail token: %w", err)
	}

	return userID, nil
}

// CreateTrackedMail stores a new tracked mail
func (s *Storage) CreateTrackedMail(ctx context.Context, mail *models.TrackedMail) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_mails (id, user_id, recipient, subject, created_at) VALUES (?, ?, ?, ?, ?)`,
		mail.ID, mail.UserID, mail.Recipient, mail.Subject, mail.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tracked mail: %w", err)
	}
	return nil
}

func scanTrackedMail(row rowScanner) (*models.TrackedMail, error) {
	var (
		mail      models.TrackedMail
		createdAt int64
	)
	if err := row.Scan(&mail.ID, &mail.UserID, &mail.Recipient, &mail.Subject, &createdAt); err != nil {
		return nil, err
	}
	mail.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &mail, nil
}

// GetTrackedMail retrieves a tracked mail by ID
func (s *Storage) GetTrackedMail(ctx context.Context, id string) (*models.TrackedMail, error) {
	mail, err := scanTrackedMail(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, recipient, subject, created_at FROM tracked_mails WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMailNotFound
		}
		return nil, fmt.Errorf("failed to get tracked mail: %w", err)
	}
	return mail, nil
}

// ListTrackedMails returns the user's mails, newest first
func (s *Storage) ListTrackedMails(ctx context.Context, userID int64) ([]*models.TrackedMail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, recipient, subject, created_at FROM tracked_mails
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked mails: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	mails := make([]*models.TrackedMail, 0)
	for rows.Next() {
		mail, err := scanTrackedMail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked mail: %w", err)
		}
		mails = append(mails, mail)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return mails, nil
}
