package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig holds the outbound mail server settings
type SMTPConfig struct {
	Host     string
	Username string
	Password string
	From     string
	Port     int
}

// sendFunc matches smtp.SendMail
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers emails through an SMTP relay
type SMTPSender struct {
	send      sendFunc
	templates *Templates
	now       func() time.Time
	cfg       SMTPConfig
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(cfg SMTPConfig, templates *Templates) *SMTPSender {
	return &SMTPSender{
		cfg:       cfg,
		templates: templates,
		send:      smtp.SendMail,
		now:       time.Now,
	}
}

// SendRegistrationEmail delivers the confirmation email
func (s *SMTPSender) SendRegistrationEmail(ctx context.Context, to, token string) error {
	return s.deliver(ctx, s.templates.Registration(to, token))
}

// SendResetPasswordEmail delivers the reset email
func (s *SMTPSender) SendResetPasswordEmail(ctx context.Context, to, token string) error {
	return s.deliver(ctx, s.templates.ResetPassword(to, token))
}

func (s *SMTPSender) deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") {
		return fmt.Errorf("invalid recipient %q", msg.To)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.cfg.From, []string{msg.To}, s.render(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	return nil
}

func (s *SMTPSender) render(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
