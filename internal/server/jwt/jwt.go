// Package jwt issues and verifies the stateless access and refresh tokens.
//
// Both token kinds are HS256 JWTs signed with the single process-wide key
// loaded by KeyLoader. They differ by issuer, so a refresh token can never be
// presented as an access token and vice versa. There is no revocation list: a
// verified signature on an unexpired token is sufficient.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/trackmail/internal/models"
)

const (
	// AccessIssuer tags access tokens
	AccessIssuer = "trackmail"
	// RefreshIssuer tags refresh tokens
	RefreshIssuer = "trackmail-refresh"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of an access token.
// Roles are carried as a comma separated list and decoded by Identity.
type AccessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Roles    string `json:"roles"`
	gojwt.RegisteredClaims
	ID int64 `json:"id"`
}

// Identity decodes the claims into a request identity
func (c *AccessClaims) Identity() (*models.Identity, error) {
	roles, err := models.ParseRoles(c.Roles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &models.Identity{
		ID:       c.ID,
		Email:    c.Email,
		Username: c.Username,
		Roles:    roles,
	}, nil
}

// RefreshClaims is the payload of a refresh token. It carries only the user
// id so that rotation always reloads the current user state.
type RefreshClaims struct {
	gojwt.RegisteredClaims
	ID int64 `json:"id"`
}

// Service provides JWT token generation and validation
type Service struct {
	now             func() time.Time
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewService creates a new JWT service.
// secret must come from KeyLoader; it is never mutated afterwards.
func NewService(secret []byte, accessTokenTTL, refreshTokenTTL time.Duration) *Service {
	return &Service{
		secret:          secret,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		now:             time.Now,
	}
}

// AccessTokenTTL returns the configured access token lifetime
func (s *Service) AccessTokenTTL() time.Duration { return s.accessTokenTTL }

// RefreshTokenTTL returns the configured refresh token lifetime
func (s *Service) RefreshTokenTTL() time.Duration { return s.refreshTokenTTL }

// IssueAccessToken creates an access token for user.
// The second return value is the lifetime in seconds, used as cookie max age.
func (s *Service) IssueAccessToken(user *models.User) (string, int, error) {
	now := s.now()
	claims := AccessClaims{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Roles:    user.Roles.String(),
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    AccessIssuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}

	token, err := s.sign(claims)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create access token: %w", err)
	}

	return token, int(s.accessTokenTTL.Seconds()), nil
}

// IssueRefreshToken creates a refresh token for user
func (s *Service) IssueRefreshToken(user *models.User) (string, int, error) {
	now := s.now()
	claims := RefreshClaims{
		ID: user.ID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    RefreshIssuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.refreshTokenTTL)),
		},
	}

	token, err := s.sign(claims)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return token, int(s.refreshTokenTTL.Seconds()), nil
}

// VerifyAccessToken validates and parses an access token
func (s *Service) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims, AccessIssuer); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken validates and parses a refresh token
func (s *Service) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, claims, RefreshIssuer); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) sign(claims gojwt.Claims) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parse(tokenString string, claims gojwt.Claims, issuer string) error {
	if tokenString == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	token, err := gojwt.ParseWithClaims(tokenString, claims, func(token *gojwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
