package storage

import (
	"context"

	"github.com/iudanet/trackmail/internal/models"
)

// TrackMailStorage defines persistence of tracking API tokens and tracked mails
type TrackMailStorage interface {
	// EnsureTrackMailToken stores candidate as the user's token unless one
	// already exists, and returns the token in effect.
	// Concurrent callers for the same user observe the same value.
	// Returns ErrUserNotFound if the user doesn't exist
	EnsureTrackMailToken(ctx context.Context, userID int64, candidate string) (string, error)

	// ReplaceTrackMailToken overwrites the user's token. The old value stops
	// working immediately. Returns ErrUserNotFound if the user doesn't exist
	ReplaceTrackMailToken(ctx context.Context, userID int64, token string) error

	// GetUserIDByTrackMailToken resolves a bearer token to its owner
	// Returns ErrTokenNotFound if no user holds the token
	GetUserIDByTrackMailToken(ctx context.Context, token string) (int64, error)

	// CreateTrackedMail stores a new tracked mail
	CreateTrackedMail(ctx context.Context, mail *models.TrackedMail) error

	// GetTrackedMail retrieves a tracked mail by ID
	// Returns ErrMailNotFound if it doesn't exist
	GetTrackedMail(ctx context.Context, id string) (*models.TrackedMail, error)

	// ListTrackedMails returns the user's mails, newest first
	ListTrackedMails(ctx context.Context, userID int64) ([]*models.TrackedMail, error)
}

// EventStorage defines persistence of open/click hits
type EventStorage interface {
	// RecordEvent appends a hit to the mail's event log
	RecordEvent(ctx context.Context, event *models.TrackingEvent) error

	// ListEvents returns the mail's hits in the order they were recorded
	ListEvents(ctx context.Context, mailID string) ([]*models.TrackingEvent, error)

	// CountEvents aggregates the mail's hits per kind
	CountEvents(ctx context.Context, mailID string) (models.EventCounts, error)

	// DeleteEvents drops the event logs of the given mails
	DeleteEvents(ctx context.Context, mailIDs ...string) error
}
