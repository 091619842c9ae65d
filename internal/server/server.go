// Package server wires storage, services and handlers into the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/trackmail/internal/config"
	"github.com/iudanet/trackmail/internal/crypto"
	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/auth"
	"github.com/iudanet/trackmail/internal/server/handlers"
	"github.com/iudanet/trackmail/internal/server/jwt"
	"github.com/iudanet/trackmail/internal/server/mail"
	"github.com/iudanet/trackmail/internal/server/metrics"
	"github.com/iudanet/trackmail/internal/server/middleware"
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage/boltdb"
	"github.com/iudanet/trackmail/internal/server/storage/sqlite"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options holds the collaborators of the server
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sqlite.Storage
	Events   *boltdb.Storage
	Mail     mail.Sender
	Registry *prometheus.Registry
	Key      []byte
	Version  string
}

// Server is the trackmail HTTP server
type Server struct {
	logger  *slog.Logger
	handler http.Handler
	addr    string
}

// New builds the routing table and middleware chain
func New(opts Options) *Server {
	cfg := opts.Config
	logger := opts.Logger
	dev := cfg.IsDevelopment()

	m := metrics.New(opts.Registry)
	tokens := jwt.NewService(opts.Key, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	passwords := crypto.NewPasswordHasher(cfg.BcryptCost)
	cookies := session.NewCookies(!dev)
	authService := auth.NewService(logger, opts.DB, tokens, passwords, m)

	authHandler := handlers.NewAuthHandler(logger, opts.DB, authService, passwords, opts.Mail, cookies, m,
		handlers.AuthConfig{
			RegistrationTokenTTL: cfg.RegistrationTokenTTL,
			ResetTokenTTL:        cfg.ResetTokenTTL,
			Development:          dev,
		})
	userHandler := handlers.NewUserHandler(logger, opts.DB, opts.DB, opts.Events, authService, passwords, cookies, dev)
	trackHandler := handlers.NewTrackMailHandler(logger, opts.DB, opts.Events, cookies, m, cfg.PublicURL, dev)
	healthHandler := handlers.NewHealthHandler(logger, opts.DB, opts.Version)

	requireUser := middleware.RequireRoles(logger, models.RoleUser)
	requireAdmin := middleware.RequireRoles(logger, models.RoleAdmin)
	bearer := middleware.Bearer(logger, opts.DB, opts.DB)

	mux := http.NewServeMux()

	// Аутентификация
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/register/confirm", authHandler.ConfirmRegistration)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.Handle("GET /auth/me", requireUser(http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/password/forgot", authHandler.ForgotPassword)
	mux.HandleFunc("POST /auth/password/reset", authHandler.ResetPassword)

	// Профиль и администрирование
	mux.Handle("PATCH /users/me", requireUser(http.HandlerFunc(userHandler.UpdateMe)))
	mux.Handle("DELETE /users/me", requireUser(http.HandlerFunc(userHandler.DeleteMe)))
	mux.Handle("GET /admin/users", requireAdmin(http.HandlerFunc(userHandler.ListUsers)))

	// TrackMail: токен через сессию, API через bearer токен
	mux.Handle("GET /app/trackmail/token", requireUser(http.HandlerFunc(trackHandler.GetToken)))
	mux.Handle("POST /app/trackmail/token", requireUser(http.HandlerFunc(trackHandler.ResetToken)))
	mux.Handle("POST /api/trackmail/mails", bearer(http.HandlerFunc(trackHandler.CreateMail)))
	mux.Handle("GET /api/trackmail/mails", bearer(http.HandlerFunc(trackHandler.ListMails)))
	mux.Handle("GET /api/trackmail/mails/{id}/events", bearer(http.HandlerFunc(trackHandler.ListEvents)))
	mux.HandleFunc("GET /t/{id}/open.gif", trackHandler.Pixel)
	mux.HandleFunc("GET /t/{id}/click", trackHandler.Click)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", metrics.Handler(opts.Registry))

	// Metrics оборачивает mux напрямую, иначе r.Pattern не виден
	handler := middleware.Chain(middleware.Metrics(m)(mux),
		middleware.Recovery(logger),
		middleware.LoggingWithSkip(logger, []string{"/health", "/metrics"}),
		middleware.Session(logger, tokens, cookies),
	)

	return &Server{
		logger:  logger,
		handler: handler,
		addr:    cfg.Addr,
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Server starting", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
