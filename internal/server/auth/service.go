// Package auth implements login and refresh token rotation.
//
// Logout has no server side: the stateless tokens stay valid until they
// expire and the handler only clears the cookies that carry them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/apperr"
	"github.com/iudanet/trackmail/internal/server/jwt"
	"github.com/iudanet/trackmail/internal/server/metrics"
	"github.com/iudanet/trackmail/internal/server/storage"
)

// Client-facing messages. Login never tells a wrong password from an
// unknown or inactive account.
const (
	MsgWrongCredentials = "Wrong credentials"
	MsgInvalidToken     = "Invalid token"
)

// UserReader is the part of the user directory the service needs
type UserReader interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
	GetPasswordHash(ctx context.Context, userID int64) (string, error)
}

// TokenCodec issues and verifies the stateless tokens
type TokenCodec interface {
	IssueAccessToken(user *models.User) (string, int, error)
	IssueRefreshToken(user *models.User) (string, int, error)
	VerifyRefreshToken(token string) (*jwt.RefreshClaims, error)
}

// PasswordVerifier checks a plaintext password against a stored hash
type PasswordVerifier interface {
	Verify(password, hash string) bool
}

// GeneratedToken is an access/refresh pair with cookie max ages in seconds
type GeneratedToken struct {
	AccessToken   string
	RefreshToken  string
	AccessMaxAge  int
	RefreshMaxAge int
}

// Service orchestrates credential checks and token issuance
type Service struct {
	logger    *slog.Logger
	users     UserReader
	tokens    TokenCodec
	passwords PasswordVerifier
	metrics   *metrics.Metrics
}

// NewService creates an auth service. m may be nil.
func NewService(logger *slog.Logger, users UserReader, tokens TokenCodec, passwords PasswordVerifier, m *metrics.Metrics) *Service {
	return &Service{
		logger:    logger,
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		metrics:   m,
	}
}

// Login checks the credentials and issues a fresh token pair.
// Every rejection is apperr.Unauthorized(MsgWrongCredentials).
func (s *Service) Login(ctx context.Context, email, password string) (*GeneratedToken, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.InfoContext(ctx, "Login rejected: unknown email")
			return nil, nil, s.rejectLogin()
		}
		s.metrics.ObserveLogin(metrics.OutcomeError)
		return nil, nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}

	if !user.IsActive {
		s.logger.InfoContext(ctx, "Login rejected: inactive account", slog.Int64("user_id", user.ID))
		return nil, nil, s.rejectLogin()
	}

	hash, err := s.users.GetPasswordHash(ctx, user.ID)
	if err != nil {
		s.metrics.ObserveLogin(metrics.OutcomeError)
		return nil, nil, apperr.Internal(fmt.Errorf("get password hash: %w", err))
	}

	if !s.passwords.Verify(password, hash) {
		s.logger.InfoContext(ctx, "Login rejected: wrong password", slog.Int64("user_id", user.ID))
		return nil, nil, s.rejectLogin()
	}

	tokens, err := s.Issue(user)
	if err != nil {
		s.metrics.ObserveLogin(metrics.OutcomeError)
		return nil, nil, err
	}

	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "User logged in", slog.Int64("user_id", user.ID))

	return tokens, user, nil
}

func (s *Service) rejectLogin() error {
	s.metrics.ObserveLogin(metrics.OutcomeFailure)
	return apperr.Unauthorized(MsgWrongCredentials)
}

// Refresh verifies a refresh token, reloads its user and issues a new pair.
// The presented token is not invalidated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*GeneratedToken, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.logger.InfoContext(ctx, "Refresh rejected", slog.Any("error", err))
		return nil, s.rejectRefresh()
	}

	// Роли и флаг активности берём из хранилища, а не из токена
	user, err := s.users.GetUserByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.InfoContext(ctx, "Refresh rejected: user gone", slog.Int64("user_id", claims.ID))
			return nil, s.rejectRefresh()
		}
		s.metrics.ObserveRefresh(metrics.OutcomeError)
		return nil, apperr.Internal(fmt.Errorf("find user: %w", err))
	}

	if !user.IsActive {
		s.logger.InfoContext(ctx, "Refresh rejected: inactive account", slog.Int64("user_id", user.ID))
		return nil, s.rejectRefresh()
	}

	tokens, err := s.Issue(user)
	if err != nil {
		s.metrics.ObserveRefresh(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.ObserveRefresh(metrics.OutcomeSuccess)

	return tokens, nil
}

func (s *Service) rejectRefresh() error {
	s.metrics.ObserveRefresh(metrics.OutcomeFailure)
	return apperr.Unauthorized(MsgInvalidToken)
}

// Issue creates an access/refresh pair for user
func (s *Service) Issue(user *models.User) (*GeneratedToken, error) {
	access, accessMaxAge, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	refresh, refreshMaxAge, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &GeneratedToken{
		AccessToken:   access,
		AccessMaxAge:  accessMaxAge,
		RefreshToken:  refresh,
		RefreshMaxAge: refreshMaxAge,
	}, nil
}
