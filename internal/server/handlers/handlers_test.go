package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/trackmail/internal/crypto"
	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/auth"
	"github.com/iudanet/trackmail/internal/server/jwt"
	"github.com/iudanet/trackmail/internal/server/mail"
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/internal/server/storage/boltdb"
	"github.com/iudanet/trackmail/internal/server/storage/sqlite"
	"github.com/iudanet/trackmail/pkg/api"
)

const (
	testPassword = "correct-horse-battery"
	accessTTL    = 15 * time.Minute
	refreshTTL   = 24 * time.Hour
)

var testSecret = []byte("handlers-test-secret-0123456789abcdef")

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv собирает handlers поверх настоящих хранилищ
type testEnv struct {
	db        *sqlite.Storage
	events    *boltdb.Storage
	sender    *mail.SenderMock
	tokens    *jwt.Service
	passwords *crypto.PasswordHasher
	auth      *AuthHandler
	users     *UserHandler
	track     *TrackMailHandler
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := setupTestLogger()

	db, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	events, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	sender := &mail.SenderMock{
		SendRegistrationEmailFunc:  func(ctx context.Context, to, token string) error { return nil },
		SendResetPasswordEmailFunc: func(ctx context.Context, to, token string) error { return nil },
	}

	tokens := jwt.NewService(testSecret, accessTTL, refreshTTL)
	passwords := crypto.NewPasswordHasher(bcrypt.MinCost)
	authService := auth.NewService(logger, db, tokens, passwords, nil)
	cookies := session.NewCookies(false)

	return &testEnv{
		db:        db,
		events:    events,
		sender:    sender,
		tokens:    tokens,
		passwords: passwords,
		auth: NewAuthHandler(logger, db, authService, passwords, sender, cookies, nil, AuthConfig{
			RegistrationTokenTTL: time.Hour,
			ResetTokenTTL:        time.Hour,
		}),
		users: NewUserHandler(logger, db, db, events, authService, passwords, cookies, false),
		track: NewTrackMailHandler(logger, db, events, cookies, nil, "https://track.example/", false),
	}
}

// createActiveUser создаёт подтверждённого пользователя с testPassword
func (e *testEnv) createActiveUser(t *testing.T, email string, roles ...models.Role) *models.User {
	t.Helper()

	hash, err := e.passwords.Hash(testPassword)
	require.NoError(t, err)

	user, err := e.db.CreateUser(context.Background(), storage.CreateUserParams{
		Email:        email,
		Username:     "user_" + email[:1],
		PasswordHash: hash,
		Roles:        models.NewRoles(roles...),
	})
	require.NoError(t, err)
	return user
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser прикрепляет identity так же, как это делают guards
func asUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(session.WithIdentity(req.Context(), user.Identity()))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
