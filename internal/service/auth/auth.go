// Package auth issues and verifies the access/refresh token pair backing
// the storefront's sign-in flow. Refresh tokens are single use: every
// refresh revokes the presented token and stores its replacement.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/hash"
	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	ErrBadEmail     = errors.New("invalid email address")
)

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type Service struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewService(r *repo.GormRepo, accessSecret, refreshSecret []byte) *Service {
	return &Service{
		Repo:          r,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
	}
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return nil, ErrBadEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	passwordHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, PasswordHash: passwordHash}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.Repo.UserByCredentials(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	// Login doubles as a liveness signal for the profile.
	_ = s.Repo.TouchLastSeen(ctx, user.ID)

	return user, pair, nil
}

// Refresh validates the presented refresh token against both the signature
// and the stored record, then rotates it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error) {
	userID, err := s.parse(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.Repo.RefreshTokenByValue(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	if stored.Revoked || stored.ExpiresAt < time.Now().Unix() {
		return nil, nil, ErrTokenExpired
	}

	user, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Repo.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, nil, err
	}
	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Repo.RevokeRefreshToken(ctx, refreshToken)
}

// VerifyAccess returns the user id carried by a valid access token.
func (s *Service) VerifyAccess(token string) (uuid.UUID, error) {
	return s.parse(token, s.AccessSecret)
}

func (s *Service) issuePair(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := s.sign(userID, accessExp, s.AccessSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, refreshExp, s.RefreshSecret)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.SaveRefreshToken(ctx, refresh, userID, refreshExp); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

func (s *Service) sign(userID uuid.UUID, expiresAt time.Time, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *Service) parse(tokenString string, secret []byte) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrTokenInvalid
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return userID, nil
}
