package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/apperr"
	"github.com/iudanet/trackmail/internal/server/metrics"
	"github.com/iudanet/trackmail/internal/server/opaque"
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/internal/validation"
	"github.com/iudanet/trackmail/pkg/api"
)

const maxSubjectLength = 255

// transparentGIF is a 1x1 transparent GIF89a
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackMailHandler обрабатывает токен трекинга, письма и хиты пикселя/ссылок
type TrackMailHandler struct {
	responder
	trackStorage storage.TrackMailStorage
	events       storage.EventStorage
	cookies      *session.Cookies
	metrics      *metrics.Metrics
	now          func() time.Time
	publicURL    string
}

// NewTrackMailHandler создает handler трекинга. m may be nil.
func NewTrackMailHandler(
	logger *slog.Logger,
	trackStorage storage.TrackMailStorage,
	events storage.EventStorage,
	cookies *session.Cookies,
	m *metrics.Metrics,
	publicURL string,
	development bool,
) *TrackMailHandler {
	return &TrackMailHandler{
		responder:    responder{logger: logger, dev: development},
		trackStorage: trackStorage,
		events:       events,
		cookies:      cookies,
		metrics:      m,
		now:          time.Now,
		publicURL:    strings.TrimRight(publicURL, "/"),
	}
}

// GetToken обрабатывает GET /app/trackmail/token
// Токен создаётся при первом запросе; параллельные запросы получают одно значение
func (h *TrackMailHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.IdentityFrom(r.Context())
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	token, err := h.trackStorage.EnsureTrackMailToken(r.Context(), identity.ID, opaque.NewValue())
	if err != nil {
		h.sendSessionError(w, r, h.cookies, fmt.Errorf("ensure trackmail token: %w", err))
		return
	}

	h.sendJSON(w, api.TrackMailTokenResponse{Token: token}, http.StatusOK)
}

// ResetToken обрабатывает POST /app/trackmail/token
// Старый токен перестаёт работать сразу
func (h *TrackMailHandler) ResetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := session.IdentityFrom(ctx)
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	token := opaque.NewValue()
	if err := h.trackStorage.ReplaceTrackMailToken(ctx, identity.ID, token); err != nil {
		h.sendSessionError(w, r, h.cookies, fmt.Errorf("replace trackmail token: %w", err))
		return
	}

	h.logger.InfoContext(ctx, "TrackMail token reset", slog.Int64("user_id", identity.ID))
	h.sendJSON(w, api.TrackMailTokenResponse{Token: token}, http.StatusOK)
}

// CreateMail обрабатывает POST /api/trackmail/mails
func (h *TrackMailHandler) CreateMail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := session.IdentityFrom(ctx)
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	var req api.CreateTrackedMailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	recipient := validation.NormalizeEmail(req.Recipient)
	if err := validation.ValidateEmail(recipient); err != nil {
		h.sendError(w, r, apperr.BadRequest(err.Error()))
		return
	}
	if utf8.RuneCountInString(req.Subject) > maxSubjectLength {
		h.sendError(w, r, apperr.BadRequest(fmt.Sprintf("subject must be at most %d characters", maxSubjectLength)))
		return
	}

	mail := &models.TrackedMail{
		ID:        uuid.NewString(),
		UserID:    identity.ID,
		Recipient: recipient,
		Subject:   req.Subject,
		CreatedAt: h.now().UTC().Truncate(time.Second),
	}
	if err := h.trackStorage.CreateTrackedMail(ctx, mail); err != nil {
		h.sendError(w, r, fmt.Errorf("create tracked mail: %w", err))
		return
	}

	h.logger.InfoContext(ctx, "Tracked mail created",
		slog.Int64("user_id", identity.ID),
		slog.String("mail_id", mail.ID),
	)

	h.sendJSON(w, h.mailResponse(mail, models.EventCounts{}), http.StatusCreated)
}

// ListMails обрабатывает GET /api/trackmail/mails
func (h *TrackMailHandler) ListMails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := session.IdentityFrom(ctx)
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	mails, err := h.trackStorage.ListTrackedMails(ctx, identity.ID)
	if err != nil {
		h.sendError(w, r, fmt.Errorf("list tracked mails: %w", err))
		return
	}

	resp := make([]api.TrackedMailResponse, 0, len(mails))
	for _, mail := range mails {
		counts, err := h.events.CountEvents(ctx, mail.ID)
		if err != nil {
			h.sendError(w, r, fmt.Errorf("count events: %w", err))
			return
		}
		resp = append(resp, h.mailResponse(mail, counts))
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// ListEvents обрабатывает GET /api/trackmail/mails/{id}/events
// Чужое письмо неотличимо от несуществующего
func (h *TrackMailHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := session.IdentityFrom(ctx)
	if !ok {
		h.sendError(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	mail, err := h.trackStorage.GetTrackedMail(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMailNotFound) {
			h.sendError(w, r, apperr.NotFound("mail not found"))
			return
		}
		h.sendError(w, r, fmt.Errorf("get tracked mail: %w", err))
		return
	}
	if mail.UserID != identity.ID {
		h.sendError(w, r, apperr.NotFound("mail not found"))
		return
	}

	events, err := h.events.ListEvents(ctx, mail.ID)
	if err != nil {
		h.sendError(w, r, fmt.Errorf("list events: %w", err))
		return
	}

	resp := make([]api.TrackingEventResponse, len(events))
	for i, e := range events {
		resp[i] = api.TrackingEventResponse{At: e.At, Kind: string(e.Kind), URL: e.URL}
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Pixel обрабатывает GET /t/{id}/open.gif
// GIF отдаётся всегда, чтобы не раскрывать существование письма
func (h *TrackMailHandler) Pixel(w http.ResponseWriter, r *http.Request) {
	if mail, ok := h.lookupMail(r); ok {
		h.record(r, mail.ID, models.EventOpen, "")
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)
}

// Click обрабатывает GET /t/{id}/click?url=
func (h *TrackMailHandler) Click(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r.URL.Query().Get("url"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	// Без зарегистрированного письма редирект не выполняется
	mail, ok := h.lookupMail(r)
	if !ok {
		h.sendError(w, r, apperr.NotFound("mail not found"))
		return
	}

	h.record(r, mail.ID, models.EventClick, target)

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *TrackMailHandler) lookupMail(r *http.Request) (*models.TrackedMail, bool) {
	mail, err := h.trackStorage.GetTrackedMail(r.Context(), r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, storage.ErrMailNotFound) {
			h.logger.ErrorContext(r.Context(), "Failed to load tracked mail", slog.Any("error", err))
		}
		return nil, false
	}
	return mail, true
}

// record сохраняет хит; ошибка записи не влияет на ответ получателю
func (h *TrackMailHandler) record(r *http.Request, mailID string, kind models.EventKind, target string) {
	event := &models.TrackingEvent{
		At:        h.now().UTC(),
		MailID:    mailID,
		Kind:      kind,
		URL:       target,
		UserAgent: r.UserAgent(),
		RemoteIP:  remoteIP(r),
	}
	if err := h.events.RecordEvent(r.Context(), event); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to record tracking event",
			slog.String("mail_id", mailID),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		return
	}
	h.metrics.ObserveTrackingEvent(string(kind))
}

func (h *TrackMailHandler) mailResponse(mail *models.TrackedMail, counts models.EventCounts) api.TrackedMailResponse {
	base := h.publicURL + "/t/" + url.PathEscape(mail.ID)
	return api.TrackedMailResponse{
		ID:        mail.ID,
		Recipient: mail.Recipient,
		Subject:   mail.Subject,
		CreatedAt: mail.CreatedAt,
		PixelURL:  base + "/open.gif",
		ClickURL:  base + "/click?url=",
		Opens:     counts.Opens,
		Clicks:    counts.Clicks,
	}
}

// parseTarget принимает только абсолютные http(s) ссылки
func parseTarget(raw string) (string, error) {
	if raw == "" {
		return "", apperr.BadRequest("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.BadRequest("url must be an absolute http(s) URL")
	}
	return u.String(), nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
