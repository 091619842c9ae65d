package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/apperr"
	"github.com/iudanet/trackmail/internal/server/auth"
	"github.com/iudanet/trackmail/internal/server/mail"
	"github.com/iudanet/trackmail/internal/server/metrics"
	"github.com/iudanet/trackmail/internal/server/opaque"
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/internal/validation"
	"github.com/iudanet/trackmail/pkg/api"
)

// Authenticator выполняет вход и ротацию токенов
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.GeneratedToken, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.GeneratedToken, error)
	Issue(user *models.User) (*auth.GeneratedToken, error)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// AuthConfig holds the lifetimes of emailed tokens
type AuthConfig struct {
	RegistrationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	Development          bool
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	responder
	userStorage storage.UserStorage
	auth        Authenticator
	passwords   PasswordHasher
	mail        mail.Sender
	cookies     *session.Cookies
	metrics     *metrics.Metrics
	now         func() time.Time
	cfg         AuthConfig
}

// NewAuthHandler создает новый handler для авторизации. m may be nil.
func NewAuthHandler(
	logger *slog.Logger,
	userStorage storage.UserStorage,
	authenticator Authenticator,
	passwords PasswordHasher,
	sender mail.Sender,
	cookies *session.Cookies,
	m *metrics.Metrics,
	cfg AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		responder:   responder{logger: logger, dev: cfg.Development},
		userStorage: userStorage,
		auth:        authenticator,
		passwords:   passwords,
		mail:        sender,
		cookies:     cookies,
		metrics:     m,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Register обрабатывает POST /auth/register
// Создаёт неактивного пользователя и отправляет письмо с токеном подтверждения
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	email := validation.NormalizeEmail(req.Email)
	if err := validateRegistration(email, req.Username, req.Password); err != nil {
		h.sendError(w, r, err)
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		h.sendError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	token := opaque.GenerateAt(h.now(), h.cfg.RegistrationTokenTTL)
	params := storage.CreateUserParams{
		Email:             email,
		Username:          req.Username,
		PasswordHash:      hash,
		RegistrationToken: &token,
	}
	user, err := h.userStorage.CreateUser(ctx, params)
	if errors.Is(err, storage.ErrUserAlreadyExists) {
		// Неподтверждённый аккаунт регистрируется заново, старый токен перестаёт действовать
		user, err = h.userStorage.RenewRegistration(ctx, params)
		if err == nil {
			h.logger.InfoContext(ctx, "Pending registration renewed", slog.Int64("user_id", user.ID))
		}
	}
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "Email already registered")
			h.sendError(w, r, apperr.Conflict("email already registered"))
			return
		}
		h.sendError(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	h.metrics.ObserveRegistration()
	h.logger.InfoContext(ctx, "User registered", slog.Int64("user_id", user.ID))

	// Ошибка доставки не отменяет регистрацию
	if err := h.mail.SendRegistrationEmail(ctx, user.Email, token.Value); err != nil {
		h.logger.ErrorContext(ctx, "Failed to send registration email",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	h.sendJSON(w, userResponse(user.Identity()), http.StatusCreated)
}

func validateRegistration(email, username, password string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return apperr.BadRequest(err.Error())
	}
	if err := validation.ValidateUsername(username); err != nil {
		return apperr.BadRequest(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return apperr.BadRequest(err.Error())
	}
	return nil
}

// ConfirmRegistration обрабатывает POST /auth/register/confirm
func (h *AuthHandler) ConfirmRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ConfirmRegistrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	user, err := h.userStorage.ActivateUser(ctx, req.Token, h.now())
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.InfoContext(ctx, "Registration confirmation rejected")
			h.sendError(w, r, apperr.BadRequest(auth.MsgInvalidToken))
			return
		}
		h.sendError(w, r, fmt.Errorf("activate user: %w", err))
		return
	}

	h.logger.InfoContext(ctx, "User activated", slog.Int64("user_id", user.ID))
	w.WriteHeader(http.StatusNoContent)
}

// Login обрабатывает POST /auth/login
// Токены передаются только в cookies, тело ответа содержит пользователя
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	tokens, user, err := h.auth.Login(r.Context(), validation.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.setSessionCookies(w, tokens)
	h.sendJSON(w, userResponse(user.Identity()), http.StatusOK)
}

// Me обрабатывает GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.IdentityFrom(r.Context())
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	h.sendJSON(w, userResponse(identity), http.StatusOK)
}

// Logout обрабатывает POST /auth/logout
// Токены остаются валидными до истечения срока, удаляются только cookies
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session.Value(r, session.AccessCookie) == "" && session.Value(r, session.RefreshCookie) == "" {
		h.sendError(w, r, apperr.BadRequest("not logged in"))
		return
	}

	h.cookies.ClearAll(w)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh обрабатывает POST /auth/refresh
// Обновление обоих токенов по refresh cookie
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := session.Value(r, session.RefreshCookie)
	if refreshToken == "" {
		h.sendError(w, r, apperr.BadRequest("refresh token is required"))
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		if apperr.As(err).Status == http.StatusUnauthorized {
			h.cookies.ClearAll(w)
		}
		h.sendError(w, r, err)
		return
	}

	h.setSessionCookies(w, tokens)
	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword обрабатывает POST /auth/password/forgot
// Ответ не зависит от того, существует ли аккаунт
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	user, err := h.userStorage.GetUserByEmail(ctx, validation.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.InfoContext(ctx, "Password reset requested for unknown email")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.sendError(w, r, fmt.Errorf("find user: %w", err))
		return
	}

	if !user.IsActive {
		h.resendConfirmation(ctx, user)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	token := opaque.GenerateAt(h.now(), h.cfg.ResetTokenTTL)
	if err := h.userStorage.SetResetToken(ctx, user.ID, token); err != nil {
		h.sendError(w, r, fmt.Errorf("set reset token: %w", err))
		return
	}

	if err := h.mail.SendResetPasswordEmail(ctx, user.Email, token.Value); err != nil {
		h.logger.ErrorContext(ctx, "Failed to send reset password email",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	w.WriteHeader(http.StatusNoContent)
}

// resendConfirmation выдаёт новый registration token вместо сброса пароля:
// пока email не подтверждён, пароль менять нечем
func (h *AuthHandler) resendConfirmation(ctx context.Context, user *models.User) {
	token := opaque.GenerateAt(h.now(), h.cfg.RegistrationTokenTTL)
	if err := h.userStorage.SetRegistrationToken(ctx, user.ID, token); err != nil {
		h.logger.ErrorContext(ctx, "Failed to renew registration token",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
		return
	}

	h.logger.InfoContext(ctx, "Confirmation resent for inactive account", slog.Int64("user_id", user.ID))
	if err := h.mail.SendRegistrationEmail(ctx, user.Email, token.Value); err != nil {
		h.logger.ErrorContext(ctx, "Failed to send registration email",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
}

// ResetPassword обрабатывает POST /auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		h.sendError(w, r, apperr.BadRequest(err.Error()))
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		h.sendError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	userID, err := h.userStorage.ResetPassword(ctx, req.Token, hash, h.now())
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.InfoContext(ctx, "Password reset rejected")
			h.sendError(w, r, apperr.BadRequest(auth.MsgInvalidToken))
			return
		}
		h.sendError(w, r, fmt.Errorf("reset password: %w", err))
		return
	}

	h.logger.InfoContext(ctx, "Password reset", slog.Int64("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, tokens *auth.GeneratedToken) {
	h.cookies.SetAccess(w, tokens.AccessToken, tokens.AccessMaxAge)
	h.cookies.SetRefresh(w, tokens.RefreshToken, tokens.RefreshMaxAge)
}

func userResponse(identity *models.Identity) api.UserResponse {
	roles := make([]string, len(identity.Roles))
	for i, role := range identity.Roles {
		roles[i] = string(role)
	}
	return api.UserResponse{
		ID:       identity.ID,
		Email:    identity.Email,
		Username: identity.Username,
		Roles:    roles,
	}
}
