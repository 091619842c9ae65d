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
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/internal/validation"
	"github.com/iudanet/trackmail/pkg/api"
)

// MailLister lists a user's tracked mails
type MailLister interface {
	ListTrackedMails(ctx context.Context, userID int64) ([]*models.TrackedMail, error)
}

// EventRemover drops tracking events that the SQL cascade cannot reach
type EventRemover interface {
	DeleteEvents(ctx context.Context, mailIDs ...string) error
}

// UserHandler обрабатывает запросы профиля и администрирования
type UserHandler struct {
	responder
	userStorage storage.UserStorage
	mails       MailLister
	events      EventRemover
	auth        Authenticator
	passwords   PasswordHasher
	cookies     *session.Cookies
}

// NewUserHandler создает новый handler профиля
func NewUserHandler(
	logger *slog.Logger,
	userStorage storage.UserStorage,
	mails MailLister,
	events EventRemover,
	authenticator Authenticator,
	passwords PasswordHasher,
	cookies *session.Cookies,
	development bool,
) *UserHandler {
	return &UserHandler{
		responder:   responder{logger: logger, dev: development},
		userStorage: userStorage,
		mails:       mails,
		events:      events,
		auth:        authenticator,
		passwords:   passwords,
		cookies:     cookies,
	}
}

// UpdateMe обрабатывает PATCH /users/me
// Тело запроса - одна из трёх вариаций: смена пароля, email или username.
// После изменения access cookie выпускается заново, чтобы claims совпадали с профилем.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := session.IdentityFrom(ctx)
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	var req api.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	variant, err := req.Variant()
	if err != nil {
		h.sendError(w, r, apperr.BadRequest(err.Error()))
		return
	}

	switch v := variant.(type) {
	case api.PasswordChange:
		err = h.changePassword(ctx, identity.ID, v)
	case api.EmailChange:
		err = h.changeEmail(ctx, identity.ID, v)
	case api.UsernameChange:
		err = h.changeUsername(ctx, identity.ID, v)
	}
	if err != nil {
		h.sendSessionError(w, r, h.cookies, err)
		return
	}

	user, err := h.userStorage.GetUserByID(ctx, identity.ID)
	if err != nil {
		h.sendSessionError(w, r, h.cookies, fmt.Errorf("reload user: %w", err))
		return
	}

	tokens, err := h.auth.Issue(user)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.cookies.SetAccess(w, tokens.AccessToken, tokens.AccessMaxAge)

	h.logger.InfoContext(ctx, "Profile updated",
		slog.Int64("user_id", user.ID),
		slog.String("change", fmt.Sprintf("%T", variant)),
	)

	h.sendJSON(w, userResponse(user.Identity()), http.StatusOK)
}

func (h *UserHandler) changePassword(ctx context.Context, userID int64, v api.PasswordChange) error {
	if err := h.checkPassword(ctx, userID, v.CurrentPassword); err != nil {
		return err
	}
	if err := validation.ValidatePassword(v.NewPassword); err != nil {
		return apperr.BadRequest(err.Error())
	}

	hash, err := h.passwords.Hash(v.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return h.userStorage.UpdatePasswordHash(ctx, userID, hash)
}

func (h *UserHandler) changeEmail(ctx context.Context, userID int64, v api.EmailChange) error {
	if err := h.checkPassword(ctx, userID, v.CurrentPassword); err != nil {
		return err
	}

	email := validation.NormalizeEmail(v.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return apperr.BadRequest(err.Error())
	}

	if err := h.userStorage.UpdateEmail(ctx, userID, email); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return apperr.Conflict("email already registered")
		}
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

func (h *UserHandler) changeUsername(ctx context.Context, userID int64, v api.UsernameChange) error {
	if err := validation.ValidateUsername(v.Username); err != nil {
		return apperr.BadRequest(err.Error())
	}
	return h.userStorage.UpdateUsername(ctx, userID, v.Username)
}

// checkPassword подтверждает чувствительные изменения текущим паролем
func (h *UserHandler) checkPassword(ctx context.Context, userID int64, password string) error {
	hash, err := h.userStorage.GetPasswordHash(ctx, userID)
	if err != nil {
		return fmt.Errorf("get password hash: %w", err)
	}
	if !h.passwords.Verify(password, hash) {
		return apperr.Forbidden("current password is incorrect")
	}
	return nil
}

// DeleteMe обрабатывает DELETE /users/me
// Удаляет аккаунт вместе с письмами и журналом событий
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := session.IdentityFrom(ctx)
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	// Список писем нужен до удаления: строки уйдут каскадом
	mails, err := h.mails.ListTrackedMails(ctx, identity.ID)
	if err != nil {
		h.sendError(w, r, fmt.Errorf("list tracked mails: %w", err))
		return
	}

	if err := h.userStorage.DeleteUser(ctx, identity.ID); err != nil {
		h.sendSessionError(w, r, h.cookies, fmt.Errorf("delete user: %w", err))
		return
	}

	ids := make([]string, len(mails))
	for i, m := range mails {
		ids[i] = m.ID
	}
	if err := h.events.DeleteEvents(ctx, ids...); err != nil {
		// Аккаунт уже удалён, осиротевшие события недоступны через API
		h.logger.ErrorContext(ctx, "Failed to delete tracking events",
			slog.Int64("user_id", identity.ID), slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "User deleted", slog.Int64("user_id", identity.ID))

	h.cookies.ClearAll(w)
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers обрабатывает GET /admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStorage.ListUsers(r.Context())
	if err != nil {
		h.sendError(w, r, fmt.Errorf("list users: %w", err))
		return
	}

	resp := make([]api.UserDetailsResponse, len(users))
	for i, u := range users {
		resp[i] = api.UserDetailsResponse{
			UserResponse: userResponse(u.Identity()),
			CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
			IsActive:     u.IsActive,
		}
	}

	h.sendJSON(w, resp, http.StatusOK)
}
