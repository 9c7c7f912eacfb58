package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

// RecentProducts backs the admin overview.
func (r *GormRepo) RecentProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type ProductStats struct {
	Total      int64 `json:"total"`
	Sale       int64 `json:"sale"`
	Bestseller int64 `json:"bestseller"`
	New        int64 `json:"new"`
}

func (r *GormRepo) CountProducts(ctx context.Context) (*ProductStats, error) {
	var stats ProductStats
	q := r.DB.WithContext(ctx).Model(&models.Product{})
	if err := q.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := q.Session(&gorm.Session{}).Where("is_sale = ?", true).Count(&stats.Sale).Error; err != nil {
		return nil, err
	}
	if err := q.Session(&gorm.Session{}).Where("is_bestseller = ?", true).Count(&stats.Bestseller).Error; err != nil {
		return nil, err
	}
	if err := q.Session(&gorm.Session{}).Where("is_new = ?", true).Count(&stats.New).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// InsertProductPruned inserts a raw column payload, dropping any field the
// backend rejects as an unknown column and retrying, bounded. The removed
// field names are always returned so the caller can tell the user what was
// ignored.
func (r *GormRepo) InsertProductPruned(ctx context.Context, payload map[string]any) (removed []string, err error) {
	attempt := make(map[string]any, len(payload))
	for k, v := range payload {
		attempt[k] = v
	}

	for i := 0; i < maxPruneAttempts; i++ {
		err = r.DB.WithContext(ctx).Table("products").Create(&attempt).Error
		if err == nil {
			return removed, nil
		}
		col, ok := missingColumn(err)
		if !ok {
			return removed, err
		}
		if _, present := attempt[col]; !present {
			return removed, err
		}
		delete(attempt, col)
		removed = append(removed, col)
	}
	return removed, ErrPruneExhausted
}

func (r *GormRepo) SaveProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
