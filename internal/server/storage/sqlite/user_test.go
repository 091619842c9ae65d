package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/opaque"
	"github.com/iudanet/trackmail/internal/server/storage"
)

func TestUserStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tests := []struct {
		name       string
		params     storage.CreateUserParams
		wantActive bool
		wantRoles  models.Roles
	}{
		{
			name: "pending registration",
			params: storage.CreateUserParams{
				Email:             "alice@example.com",
				Username:          "alice",
				PasswordHash:      "hash",
				RegistrationToken: tokenPtr(opaque.Generate(time.Hour)),
			},
			wantActive: false,
			wantRoles:  models.Roles{models.RoleUser},
		},
		{
			name: "active admin without registration token",
			params: storage.CreateUserParams{
				Email:        "root@example.com",
				Username:     "root",
				PasswordHash: "hash",
				Roles:        models.NewRoles(models.RoleAdmin),
			},
			wantActive: true,
			wantRoles:  models.Roles{models.RoleUser, models.RoleAdmin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := s.CreateUser(ctx, tt.params)
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.Equal(t, tt.params.Email, user.Email)
			assert.Equal(t, tt.wantActive, user.IsActive)
			assert.Equal(t, tt.wantRoles, user.Roles)

			retrieved, err := s.GetUserByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, user, retrieved)
		})
	}
}

func TestUserStorage_CreateUser_DuplicateEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestUser(t, ctx, s, "dup@example.com")

	_, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:        "DUP@Example.com",
		Username:     "other",
		PasswordHash: "hash",
	})
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestUserStorage_RenewRegistration(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Now()
	oldToken := opaque.GenerateAt(now, time.Hour)
	pending, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:             "pending@example.com",
		Username:          "pending",
		PasswordHash:      "old-hash",
		RegistrationToken: &oldToken,
	})
	require.NoError(t, err)

	newToken := opaque.GenerateAt(now, time.Hour)
	renewed, err := s.RenewRegistration(ctx, storage.CreateUserParams{
		Email:             "PENDING@example.com",
		Username:          "renamed",
		PasswordHash:      "new-hash",
		RegistrationToken: &newToken,
	})
	require.NoError(t, err)
	assert.Equal(t, pending.ID, renewed.ID)
	assert.Equal(t, "renamed", renewed.Username)
	assert.False(t, renewed.IsActive)

	hash, err := s.GetPasswordHash(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", hash)

	_, err = s.ActivateUser(ctx, oldToken.Value, now)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	_, err = s.ActivateUser(ctx, newToken.Value, now)
	require.NoError(t, err)

	// Активный аккаунт не перезаписывается
	_, err = s.RenewRegistration(ctx, storage.CreateUserParams{
		Email:             "pending@example.com",
		Username:          "intruder",
		PasswordHash:      "intruder-hash",
		RegistrationToken: tokenPtr(opaque.GenerateAt(now, time.Hour)),
	})
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)

	hash, err = s.GetPasswordHash(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", hash)
}

func TestUserStorage_SetRegistrationToken(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Now()
	first := opaque.GenerateAt(now, time.Hour)
	pending, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:             "later@example.com",
		Username:          "later",
		PasswordHash:      "hash",
		RegistrationToken: &first,
	})
	require.NoError(t, err)

	second := opaque.GenerateAt(now, time.Hour)
	require.NoError(t, s.SetRegistrationToken(ctx, pending.ID, second))

	_, err = s.ActivateUser(ctx, first.Value, now)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	_, err = s.ActivateUser(ctx, second.Value, now)
	require.NoError(t, err)

	active := createTestUser(t, ctx, s, "active@example.com")
	err = s.SetRegistrationToken(ctx, active.ID, opaque.GenerateAt(now, time.Hour))
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_GetUserByEmail(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	created := createTestUser(t, ctx, s, "Bob@Example.com")

	tests := []struct {
		wantError error
		name      string
		email     string
	}{
		{name: "exact", email: "Bob@Example.com"},
		{name: "different case", email: "bob@example.COM"},
		{name: "surrounding spaces", email: "  bob@example.com "},
		{name: "unknown", email: "nobody@example.com", wantError: storage.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := s.GetUserByEmail(ctx, tt.email)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.ID, user.ID)
		})
	}
}

func TestUserStorage_GetUserByID_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetUserByID(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.GetPasswordHash(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_ListUsers(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	first := createTestUser(t, ctx, s, "one@example.com")
	second := createTestUser(t, ctx, s, "two@example.com")

	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)
	assert.Equal(t, second.ID, users[1].ID)
}

func TestUserStorage_ActivateUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Now()
	token := opaque.GenerateAt(now, time.Hour)
	user, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:             "new@example.com",
		Username:          "new",
		PasswordHash:      "hash",
		RegistrationToken: &token,
	})
	require.NoError(t, err)
	require.False(t, user.IsActive)

	activated, err := s.ActivateUser(ctx, token.Value, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, activated.ID)
	assert.True(t, activated.IsActive)

	// Повторное использование того же токена невозможно
	_, err = s.ActivateUser(ctx, token.Value, now)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestUserStorage_ActivateUser_Rejected(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Now()
	token := opaque.GenerateAt(now, time.Hour)
	_, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:             "late@example.com",
		Username:          "late",
		PasswordHash:      "hash",
		RegistrationToken: &token,
	})
	require.NoError(t, err)

	tests := []struct {
		at    time.Time
		name  string
		token string
	}{
		{name: "empty token", token: "", at: now},
		{name: "unknown token", token: opaque.NewValue(), at: now},
		{name: "at expiry", token: token.Value, at: token.ExpiresAt},
		{name: "after expiry", token: token.Value, at: token.ExpiresAt.Add(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ActivateUser(ctx, tt.token, tt.at)
			assert.ErrorIs(t, err, storage.ErrTokenNotFound)
		})
	}

	user, err := s.GetUserByEmail(ctx, "late@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestUserStorage_ActivateUser_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Now()
	token := opaque.GenerateAt(now, time.Hour)
	_, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:             "race@example.com",
		Username:          "race",
		PasswordHash:      "hash",
		RegistrationToken: &token,
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ActivateUser(ctx, token.Value, now); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestUserStorage_ResetPassword(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := createTestUser(t, ctx, s, "reset@example.com")
	now := time.Now()

	first := opaque.GenerateAt(now, time.Hour)
	require.NoError(t, s.SetResetToken(ctx, user.ID, first))

	// Новый токен заменяет предыдущий
	second := opaque.GenerateAt(now, time.Hour)
	require.NoError(t, s.SetResetToken(ctx, user.ID, second))

	_, err := s.ResetPassword(ctx, first.Value, "new-hash", now)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	id, err := s.ResetPassword(ctx, second.Value, "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	hash, err := s.GetPasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", hash)

	_, err = s.ResetPassword(ctx, second.Value, "again", now)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestUserStorage_ResetPassword_Expired(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := createTestUser(t, ctx, s, "expired@example.com")
	now := time.Now()
	token := opaque.GenerateAt(now, time.Minute)
	require.NoError(t, s.SetResetToken(ctx, user.ID, token))

	_, err := s.ResetPassword(ctx, token.Value, "new-hash", now.Add(2*time.Minute))
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	hash, err := s.GetPasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)
}

func TestUserStorage_SetResetToken_UnknownUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.SetResetToken(ctx, 99, opaque.Generate(time.Hour))
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_Updates(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := createTestUser(t, ctx, s, "upd@example.com")
	createTestUser(t, ctx, s, "taken@example.com")

	require.NoError(t, s.UpdateUsername(ctx, user.ID, "renamed"))
	require.NoError(t, s.UpdateEmail(ctx, user.ID, "moved@example.com"))
	require.NoError(t, s.UpdatePasswordHash(ctx, user.ID, "hash2"))
	require.NoError(t, s.UpdateRoles(ctx, user.ID, models.Roles{models.RoleAdmin}))

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Username)
	assert.Equal(t, "moved@example.com", got.Email)
	assert.Equal(t, models.Roles{models.RoleUser, models.RoleAdmin}, got.Roles)

	hash, err := s.GetPasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash2", hash)

	err = s.UpdateEmail(ctx, user.ID, "TAKEN@example.com")
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)

	err = s.UpdateUsername(ctx, 999, "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_DeleteUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := createTestUser(t, ctx, s, "gone@example.com")
	_, err := s.EnsureTrackMailToken(ctx, user.ID, "tok")
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, user.ID))

	_, err = s.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	// Токен трекинга удаляется каскадно
	_, err = s.GetUserIDByTrackMailToken(ctx, "tok")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	err = s.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

// Helper functions

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage, email string) *models.User {
	user, err := s.CreateUser(ctx, storage.CreateUserParams{
		Email:        email,
		Username:     fmt.Sprintf("user_%d", time.Now().UnixNano()),
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}

func tokenPtr(t opaque.Token) *opaque.Token {
	return &t
}
