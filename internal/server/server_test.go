package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/trackmail/internal/config"
	"github.com/iudanet/trackmail/internal/server/mail"
	"github.com/iudanet/trackmail/internal/server/storage/boltdb"
	"github.com/iudanet/trackmail/internal/server/storage/sqlite"
	"github.com/iudanet/trackmail/pkg/api"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	*httptest.Server
	client *http.Client
	sender *mail.SenderMock
	db     *sqlite.Storage
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

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

	cfg := config.Defaults()
	cfg.Env = config.EnvDevelopment
	cfg.BcryptCost = 4

	srv := New(Options{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:       db,
		Events:   events,
		Mail:     sender,
		Registry: prometheus.NewRegistry(),
		Key:      []byte("server-test-secret-0123456789abcdef"),
		Version:  "test",
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{
		Server: ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sender: sender,
		db:     db,
	}
}

// do выполняет запрос и декодирует JSON ответ в out, если он задан
func (ts *testServer) do(t *testing.T, method, path string, body any, out any, headers ...string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// signUp регистрирует, подтверждает и логинит пользователя
func (ts *testServer) signUp(t *testing.T, email string) api.UserResponse {
	t.Helper()

	resp := ts.do(t, http.MethodPost, "/auth/register", api.RegisterRequest{
		Email: email, Username: "member", Password: testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	calls := ts.sender.SendRegistrationEmailCalls()
	token := calls[len(calls)-1].Token

	// До подтверждения вход невозможен
	resp = ts.do(t, http.MethodPost, "/auth/login", api.LoginRequest{Email: email, Password: testPassword}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/register/confirm", api.ConfirmRegistrationRequest{Token: token}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var user api.UserResponse
	resp = ts.do(t, http.MethodPost, "/auth/login", api.LoginRequest{Email: email, Password: testPassword}, &user)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return user
}

func (ts *testServer) cookie(t *testing.T, path, name string) *http.Cookie {
	t.Helper()

	u, err := url.Parse(ts.URL + path)
	require.NoError(t, err)
	for _, c := range ts.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestServer_SessionLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	user := ts.signUp(t, "alice@example.com")

	// Refresh cookie виден только на /auth
	require.NotNil(t, ts.cookie(t, "/auth/refresh", "refresh_token"))
	assert.Nil(t, ts.cookie(t, "/users/me", "refresh_token"))
	require.NotNil(t, ts.cookie(t, "/users/me", "access_token"))

	var me api.UserResponse
	resp := ts.do(t, http.MethodGet, "/auth/me", nil, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, user.ID, me.ID)

	resp = ts.do(t, http.MethodGet, "/admin/users", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPatch, "/users/me", api.UpdateUserRequest{Username: "alice_b"}, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice_b", me.Username)

	// Новый access cookie уже содержит новый username
	resp = ts.do(t, http.MethodGet, "/auth/me", nil, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice_b", me.Username)

	resp = ts.do(t, http.MethodPost, "/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_InvalidAccessCookieIsDropped(t *testing.T) {
	ts := setupTestServer(t)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ts.client.Jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "forged", Path: "/"}})

	// Публичный маршрут работает, плохой cookie удаляется
	resp := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, ts.cookie(t, "/", "access_token"))

	resp = ts.do(t, http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_SessionOfDeletedUser(t *testing.T) {
	ts := setupTestServer(t)
	user := ts.signUp(t, "ghost@example.com")

	access := ts.cookie(t, "/", "access_token")
	require.NotNil(t, access)
	require.NoError(t, ts.db.DeleteUser(context.Background(), user.ID))

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)

	tests := []struct {
		body   any
		name   string
		method string
		path   string
	}{
		{name: "change username", method: http.MethodPatch, path: "/users/me",
			body: api.UpdateUserRequest{Username: "ghost_b"}},
		{name: "change password", method: http.MethodPatch, path: "/users/me",
			body: api.UpdateUserRequest{CurrentPassword: testPassword, NewPassword: "another-password"}},
		{name: "change email", method: http.MethodPatch, path: "/users/me",
			body: api.UpdateUserRequest{CurrentPassword: testPassword, Email: "ghost2@example.com"}},
		{name: "get trackmail token", method: http.MethodGet, path: "/app/trackmail/token"},
		{name: "reset trackmail token", method: http.MethodPost, path: "/app/trackmail/token"},
		{name: "delete account", method: http.MethodDelete, path: "/users/me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Access token остаётся валидным до истечения срока
			ts.client.Jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: access.Value, Path: "/"}})

			var errResp api.ErrorResponse
			resp := ts.do(t, tt.method, tt.path, tt.body, &errResp)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "user not found", errResp.Message)
			assert.Nil(t, ts.cookie(t, "/", "access_token"), "session cookie cleared")
		})
	}
}

func TestServer_TrackMailFlow(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t, "bob@example.com")

	var first, second, reset, afterReset api.TrackMailTokenResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/app/trackmail/token", nil, &first).StatusCode)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/app/trackmail/token", nil, &second).StatusCode)
	assert.Equal(t, first.Token, second.Token)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/app/trackmail/token", nil, &reset).StatusCode)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/app/trackmail/token", nil, &afterReset).StatusCode)
	assert.NotEqual(t, first.Token, afterReset.Token)
	assert.Equal(t, reset.Token, afterReset.Token)

	create := api.CreateTrackedMailRequest{Recipient: "reader@example.com", Subject: "Hello"}

	// Bearer API не принимает сессионный cookie
	resp := ts.do(t, http.MethodPost, "/api/trackmail/mails", create, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/trackmail/mails", create, nil, "Authorization", "Bearer "+first.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "old token is revoked by reset")

	var mail api.TrackedMailResponse
	resp = ts.do(t, http.MethodPost, "/api/trackmail/mails", create, &mail, "Authorization", "Bearer "+reset.Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, strings.HasPrefix(mail.PixelURL, "http://localhost:8080/t/"))

	pixelPath := strings.TrimPrefix(mail.PixelURL, "http://localhost:8080")
	clickPath := strings.TrimPrefix(mail.ClickURL, "http://localhost:8080") + url.QueryEscape("https://example.org/")

	resp = ts.do(t, http.MethodGet, pixelPath, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))

	resp = ts.do(t, http.MethodGet, clickPath, nil, nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.org/", resp.Header.Get("Location"))

	var mails []api.TrackedMailResponse
	resp = ts.do(t, http.MethodGet, "/api/trackmail/mails", nil, &mails, "Authorization", "Bearer "+reset.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, mails, 1)
	assert.Equal(t, 1, mails[0].Opens)
	assert.Equal(t, 1, mails[0].Clicks)

	var events []api.TrackingEventResponse
	resp = ts.do(t, http.MethodGet, "/api/trackmail/mails/"+mail.ID+"/events", nil, &events, "Authorization", "Bearer "+reset.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, events, 2)

	// Удаление аккаунта делает токен недействительным
	resp = ts.do(t, http.MethodDelete, "/users/me", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/trackmail/mails", nil, nil, "Authorization", "Bearer "+reset.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_MetricsAndHealth(t *testing.T) {
	ts := setupTestServer(t)
	ts.signUp(t, "carol@example.com")

	resp := ts.do(t, http.MethodGet, "/auth/me", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	resp = ts.do(t, http.MethodGet, "/health", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	metricsResp, err := ts.client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = metricsResp.Body.Close() }()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `trackmail_http_requests_total{method="GET",route="GET /auth/me",status="200"} 1`)
	assert.Contains(t, text, `trackmail_logins_total{outcome="success"} 1`)
	assert.Contains(t, text, `trackmail_logins_total{outcome="failure"} 1`)
	assert.Contains(t, text, "trackmail_registrations_total 1")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Addr = "127.0.0.1:0"

	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	srv := New(Options{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:       db,
		Mail:     &mail.SenderMock{},
		Registry: prometheus.NewRegistry(),
		Key:      []byte("server-test-secret-0123456789abcdef"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
