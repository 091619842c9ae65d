package admin

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/trackmail/internal/admin/iocli"
	"github.com/iudanet/trackmail/internal/crypto"
	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/internal/server/storage/sqlite"
)

const testPassword = "admin-password-123"

// newIOMock отвечает на запросы из inputs по тексту prompt и собирает вывод
func newIOMock(inputs map[string]string, out *strings.Builder) *iocli.IOMock {
	read := func(prompt string) (string, error) {
		v, ok := inputs[prompt]
		if !ok {
			return "", fmt.Errorf("unexpected prompt %q", prompt)
		}
		return v, nil
	}
	return &iocli.IOMock{
		PrintlnFunc:      func(a ...any) { out.WriteString(fmt.Sprintln(a...)) },
		PrintfFunc:       func(format string, a ...any) { out.WriteString(fmt.Sprintf(format, a...)) },
		ReadInputFunc:    read,
		ReadPasswordFunc: read,
	}
}

func setupAdmin(t *testing.T, inputs map[string]string) (*Admin, *sqlite.Storage, *strings.Builder) {
	t.Helper()

	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	out := &strings.Builder{}
	a := New(newIOMock(inputs, out), db, crypto.NewPasswordHasher(bcrypt.MinCost))
	a.getenv = func(string) string { return "" }
	return a, db, out
}

func TestAdmin_CreateAdmin(t *testing.T) {
	a, db, out := setupAdmin(t, map[string]string{
		"Email: ":            "Root@Example.com",
		"Username: ":         "root",
		"Password: ":         testPassword,
		"Confirm password: ": testPassword,
	})

	require.NoError(t, a.Run(context.Background(), "create-admin", nil))
	assert.Contains(t, out.String(), "Administrator created")

	user, err := db.GetUserByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.True(t, user.Roles.HasAll(models.RoleUser, models.RoleAdmin))

	hash, err := db.GetPasswordHash(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, crypto.NewPasswordHasher(bcrypt.MinCost).Verify(testPassword, hash))
}

func TestAdmin_CreateAdmin_PasswordFromEnv(t *testing.T) {
	a, db, _ := setupAdmin(t, map[string]string{
		"Email: ":    "ops@example.com",
		"Username: ": "ops",
	})
	a.getenv = func(key string) string {
		if key == PasswordEnv {
			return testPassword
		}
		return ""
	}

	require.NoError(t, a.CreateAdmin(context.Background()))

	_, err := db.GetUserByEmail(context.Background(), "ops@example.com")
	assert.NoError(t, err)
}

func TestAdmin_CreateAdmin_Errors(t *testing.T) {
	tests := []struct {
		inputs  map[string]string
		name    string
		wantErr string
	}{
		{
			name:    "invalid email",
			inputs:  map[string]string{"Email: ": "nope"},
			wantErr: "email",
		},
		{
			name:    "invalid username",
			inputs:  map[string]string{"Email: ": "a@example.com", "Username: ": "no spaces"},
			wantErr: "username",
		},
		{
			name: "passwords differ",
			inputs: map[string]string{
				"Email: ": "a@example.com", "Username: ": "alice",
				"Password: ": testPassword, "Confirm password: ": testPassword + "x",
			},
			wantErr: "passwords do not match",
		},
		{
			name: "weak password",
			inputs: map[string]string{
				"Email: ": "a@example.com", "Username: ": "alice", "Password: ": "short",
			},
			wantErr: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, db, _ := setupAdmin(t, tt.inputs)

			err := a.CreateAdmin(context.Background())
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tt.wantErr)

			users, err := db.ListUsers(context.Background())
			require.NoError(t, err)
			assert.Empty(t, users)
		})
	}
}

func TestAdmin_CreateAdmin_Duplicate(t *testing.T) {
	a, db, _ := setupAdmin(t, map[string]string{
		"Email: ":            "dup@example.com",
		"Username: ":         "dup",
		"Password: ":         testPassword,
		"Confirm password: ": testPassword,
	})
	_, err := db.CreateUser(context.Background(), storage.CreateUserParams{
		Email: "dup@example.com", Username: "dup", PasswordHash: "x",
	})
	require.NoError(t, err)

	err = a.CreateAdmin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grant-admin")
}

func TestAdmin_GrantAdmin(t *testing.T) {
	a, db, out := setupAdmin(t, nil)
	ctx := context.Background()

	user, err := db.CreateUser(ctx, storage.CreateUserParams{
		Email: "member@example.com", Username: "member", PasswordHash: "x",
	})
	require.NoError(t, err)
	require.Equal(t, models.Roles{models.RoleUser}, user.Roles)

	require.NoError(t, a.Run(ctx, "grant-admin", []string{"MEMBER@example.com"}))

	user, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Roles{models.RoleUser, models.RoleAdmin}, user.Roles)

	// Повторный вызов ничего не меняет
	require.NoError(t, a.GrantAdmin(ctx, "member@example.com"))
	assert.Contains(t, out.String(), "already an administrator")

	assert.Error(t, a.GrantAdmin(ctx, "ghost@example.com"))
	assert.Error(t, a.Run(ctx, "grant-admin", nil))
}

func TestAdmin_ListUsers(t *testing.T) {
	a, db, out := setupAdmin(t, nil)
	ctx := context.Background()

	for _, email := range []string{"one@example.com", "two@example.com"} {
		_, err := db.CreateUser(ctx, storage.CreateUserParams{
			Email: email, Username: "user", PasswordHash: "x",
		})
		require.NoError(t, err)
	}

	require.NoError(t, a.Run(ctx, "list-users", nil))

	text := out.String()
	assert.Contains(t, text, "one@example.com")
	assert.Contains(t, text, "two@example.com")
	assert.Contains(t, text, "Total: 2")
}

func TestAdmin_UnknownCommand(t *testing.T) {
	a, _, _ := setupAdmin(t, nil)

	err := a.Run(context.Background(), "drop-everything", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
