package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/hash"
	"github.com/soggo/bounty/internal/models"
)

func (r *GormRepo) UserByCredentials(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser also creates the profile row carrying the default role.
func (r *GormRepo) CreateUser(ctx context.Context, user *models.User) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("email = ?", user.Email).First(&existing).Error
		if err == nil {
			return ErrUserAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile := models.Profile{ID: user.ID, Role: "customer"}
		return tx.Create(&profile).Error
	})
}

func (r *GormRepo) RoleForUser(ctx context.Context, id uuid.UUID) (string, error) {
	var profile models.Profile
	if err := r.DB.WithContext(ctx).Select("role").Where("id = ?", id).First(&profile).Error; err != nil {
		return "", err
	}
	return profile.Role, nil
}

// TouchLastSeen is best-effort; callers ignore the error.
func (r *GormRepo) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Update("last_seen_at", time.Now().UTC()).Error
}

func (r *GormRepo) SaveRefreshToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	rec := models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt.Unix(),
		Revoked:   false,
	}
	return r.DB.WithContext(ctx).Create(&rec).Error
}

func (r *GormRepo) RefreshTokenByValue(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	return r.DB.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ?", token).
		Update("revoked", true).Error
}
