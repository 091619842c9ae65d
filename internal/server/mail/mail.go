// Package mail delivers account emails: registration confirmation and
// password reset links.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

//go:generate moq -out sender_mock.go . Sender

// Sender delivers account emails. Callers log failures and carry on.
type Sender interface {
	SendRegistrationEmail(ctx context.Context, to, token string) error
	SendResetPasswordEmail(ctx context.Context, to, token string) error
}

// Message is a rendered plain-text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Templates renders account emails with links under the public URL
type Templates struct {
	publicURL string
}

// NewTemplates creates templates for the given public base URL
func NewTemplates(publicURL string) *Templates {
	return &Templates{publicURL: strings.TrimRight(publicURL, "/")}
}

// Registration renders the confirmation email
func (t *Templates) Registration(to, token string) Message {
	link := t.link("/confirm", token)
	return Message{
		To:      to,
		Subject: "Confirm your TrackMail account",
		Body: "Welcome to TrackMail!\r\n\r\n" +
			"Open the link below to activate your account:\r\n" +
			link + "\r\n",
	}
}

// ResetPassword renders the password reset email
func (t *Templates) ResetPassword(to, token string) Message {
	link := t.link("/reset-password", token)
	return Message{
		To:      to,
		Subject: "Reset your TrackMail password",
		Body: "Somebody asked to reset the password of your TrackMail account.\r\n\r\n" +
			"Open the link below to choose a new one:\r\n" +
			link + "\r\n\r\n" +
			"If it was not you, ignore this email.\r\n",
	}
}

func (t *Templates) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", t.publicURL, path, url.QueryEscape(token))
}

// LogSender writes emails to the log instead of delivering them.
// Used in development and when SMTP is not configured.
type LogSender struct {
	logger    *slog.Logger
	templates *Templates
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *slog.Logger, templates *Templates) *LogSender {
	return &LogSender{logger: logger, templates: templates}
}

// SendRegistrationEmail logs the confirmation email
func (s *LogSender) SendRegistrationEmail(ctx context.Context, to, token string) error {
	s.log(ctx, s.templates.Registration(to, token))
	return nil
}

// SendResetPasswordEmail logs the reset email
func (s *LogSender) SendResetPasswordEmail(ctx context.Context, to, token string) error {
	s.log(ctx, s.templates.ResetPassword(to, token))
	return nil
}

func (s *LogSender) log(ctx context.Context, msg Message) {
	s.logger.InfoContext(ctx, "Email not delivered (log sender)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
}
