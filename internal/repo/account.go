package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/soggo/bounty/internal/models"
)

func (r *GormRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB.WithContext(ctx).Where("id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GormRepo) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var items []models.Address
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) DefaultShippingAddress(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND is_default_shipping = ?", userID, true).
		First(&addr).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *GormRepo) CreateAddress(ctx context.Context, addr *models.Address) error {
	return r.DB.WithContext(ctx).Create(addr).Error
}

func (r *GormRepo) UpdateAddress(ctx context.Context, addr *models.Address) error {
	return r.DB.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addr.ID, addr.UserID).
		Updates(addr).Error
}

type WishlistEntry struct {
	Item    models.WishlistItem `json:"item"`
	Product models.Product      `json:"product"`
}

func (r *GormRepo) ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error) {
	var items []models.WishlistItem
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := make([]WishlistEntry, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		entries = append(entries, WishlistEntry{Item: it, Product: p})
	}
	return entries, nil
}

func (r *GormRepo) AddWishlistItem(ctx context.Context, item *models.WishlistItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) RemoveWishlistItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.WishlistItem{}).Error
}
