// Package admin implements the maintenance commands of trackmail-admin.
package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iudanet/trackmail/internal/admin/iocli"
	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/storage"
	"github.com/iudanet/trackmail/internal/validation"
)

// PasswordEnv lets scripts provide the new admin password without a prompt
const PasswordEnv = "TRACKMAIL_ADMIN_PASSWORD"

// ErrUnknownCommand is returned by Run for an unsupported command
var ErrUnknownCommand = errors.New("unknown command")

// UserStore is the part of the user directory the commands need
type UserStore interface {
	CreateUser(ctx context.Context, params storage.CreateUserParams) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRoles(ctx context.Context, userID int64, roles models.Roles) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// Hasher hashes passwords
type Hasher interface {
	Hash(password string) (string, error)
}

// Admin runs commands against the user directory
type Admin struct {
	io     iocli.IO
	users  UserStore
	hasher Hasher
	getenv func(string) string
}

// New creates the command runner
func New(io iocli.IO, users UserStore, hasher Hasher) *Admin {
	return &Admin{io: io, users: users, hasher: hasher, getenv: os.Getenv}
}

// Run dispatches command with its positional args
func (a *Admin) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "create-admin":
		return a.CreateAdmin(ctx)
	case "grant-admin":
		if len(args) != 1 {
			return fmt.Errorf("usage: grant-admin <email>")
		}
		return a.GrantAdmin(ctx, args[0])
	case "list-users":
		return a.ListUsers(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// CreateAdmin creates an active account holding the ADMIN role.
// It skips email confirmation, so it is the way to bootstrap the first admin.
func (a *Admin) CreateAdmin(ctx context.Context) error {
	a.io.Println("=== Create administrator ===")

	email, err := a.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}

	username, err := a.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}

	password, err := a.readNewPassword()
	if err != nil {
		return err
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.users.CreateUser(ctx, storage.CreateUserParams{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Roles:        models.NewRoles(models.RoleAdmin),
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return fmt.Errorf("email %s is already registered, use grant-admin", email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	a.io.Printf("✓ Administrator created (id %d, roles %s)\n", user.ID, user.Roles)
	return nil
}

// readNewPassword берёт пароль из окружения или спрашивает дважды
func (a *Admin) readNewPassword() (string, error) {
	if password := a.getenv(PasswordEnv); password != "" {
		if err := validation.ValidatePassword(password); err != nil {
			return "", fmt.Errorf("%s: %w", PasswordEnv, err)
		}
		return password, nil
	}

	password, err := a.io.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}

	confirm, err := a.io.ReadPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}

	return password, nil
}

// GrantAdmin adds the ADMIN role to an existing account
func (a *Admin) GrantAdmin(ctx context.Context, email string) error {
	user, err := a.users.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("no user with email %s", email)
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	if user.Roles.Has(models.RoleAdmin) {
		a.io.Printf("%s is already an administrator\n", user.Email)
		return nil
	}

	roles := models.NewRoles(append(user.Roles, models.RoleAdmin)...)
	if err := a.users.UpdateRoles(ctx, user.ID, roles); err != nil {
		return fmt.Errorf("failed to update roles: %w", err)
	}

	// Новые роли попадут в access token при следующем входе или refresh
	a.io.Printf("✓ %s now has roles %s\n", user.Email, roles)
	return nil
}

// ListUsers prints every account
func (a *Admin) ListUsers(ctx context.Context) error {
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tUSERNAME\tROLES\tACTIVE\tCREATED")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n",
			u.ID, u.Email, u.Username, u.Roles, u.IsActive, u.CreatedAt.Format(time.DateTime))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	a.io.Printf("%s", sb.String())
	a.io.Printf("Total: %d\n", len(users))
	return nil
}

// PrintUsage prints the command reference
func PrintUsage(io iocli.IO) {
	io.Println("TrackMail administration")
	io.Println()
	io.Println("Usage:")
	io.Println("  trackmail-admin [OPTIONS] COMMAND")
	io.Println()
	io.Println("Options:")
	io.Println("  -d PATH       Path to the SQLite database (default: $DB_PATH or ./data/trackmail.db)")
	io.Println("  -version      Show version information")
	io.Println()
	io.Println("Commands:")
	io.Println("  create-admin          Create an active administrator account")
	io.Println("  grant-admin <email>   Add the ADMIN role to an existing account")
	io.Println("  list-users            List all accounts")
	io.Println()
	io.Printf("The %s environment variable skips the password prompt.\n", PasswordEnv)
}
