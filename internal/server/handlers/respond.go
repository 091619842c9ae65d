package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/trackmail/internal/server/apperr"
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/pkg/api"
)

// maxBodySize ограничивает размер JSON тела запроса
const maxBodySize = 1 << 20

// responder пишет JSON ответы; общий для всех handlers
type responder struct {
	logger *slog.Logger
	// dev раскрывает текст внутренних ошибок клиенту
	dev bool
}

// sendJSON отправляет JSON ответ
func (rs responder) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError maps err onto the error taxonomy and writes it.
// Internal errors are logged; their text only reaches the client in development.
func (rs responder) sendError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)

	message := appErr.Message
	if appErr.Status >= http.StatusInternalServerError {
		rs.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		if rs.dev {
			message = err.Error()
		}
	}

	rs.sendJSON(w, api.ErrorResponse{
		Error:   http.StatusText(appErr.Status),
		Message: message,
	}, appErr.Status)
}

// sendSessionError is sendError for routes behind a session. An access token
// outlives a deleted account, so a missing user answers 404 and drops the cookies.
func (rs responder) sendSessionError(w http.ResponseWriter, r *http.Request, cookies *session.Cookies, err error) {
	if errors.Is(err, storage.ErrUserNotFound) {
		cookies.ClearAll(w)
		err = apperr.NotFound("user not found").Wrap(err)
	}
	rs.sendError(w, r, err)
}

// decodeJSON читает тело запроса в dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is empty")
		}
		return apperr.BadRequest("invalid request body").Wrap(err)
	}
	return nil
}
