package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RefreshToken{},
		&models.Category{},
		&models.Product{},
		&models.Address{},
		&models.WishlistItem{},
	))
	return &GormRepo{DB: db}
}

func TestMissingColumnDetection(t *testing.T) {
	col, ok := missingColumn(errors.New(`ERROR: column "nonexistent" of relation "products" does not exist (SQLSTATE 42703)`))
	require.True(t, ok)
	require.Equal(t, "nonexistent", col)

	col, ok = missingColumn(errors.New("table products has no column named legacy_field"))
	require.True(t, ok)
	require.Equal(t, "legacy_field", col)

	_, ok = missingColumn(errors.New("constraint violation"))
	require.False(t, ok)

	_, ok = missingColumn(nil)
	require.False(t, ok)
}

func TestInsertProductPrunedCleanPayload(t *testing.T) {
	r := newTestRepo(t)

	id := uuid.New()
	removed, err := r.InsertProductPruned(context.Background(), map[string]any{
		"id":             id,
		"name":           "Mug",
		"slug":           "mug",
		"price":          int64(2999),
		"is_sale":        false,
		"is_bestseller":  false,
		"is_new":         true,
		"product_type":   "individual",
		"stock_quantity": 5,
		"created_at":     time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Empty(t, removed)

	got, err := r.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "mug", got.Slug)
	require.Equal(t, int64(2999), got.Price)
}

func TestInsertProductPrunedDropsUnknownColumns(t *testing.T) {
	r := newTestRepo(t)

	id := uuid.New()
	removed, err := r.InsertProductPruned(context.Background(), map[string]any{
		"id":           id,
		"name":         "Mug",
		"slug":         "mug-2",
		"price":        int64(100),
		"created_at":   time.Now().UTC(),
		"legacy_field": "drop me",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"legacy_field"}, removed)

	got, err := r.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Mug", got.Name)
}

func TestInsertProductPrunedSurfacesOtherErrors(t *testing.T) {
	r := newTestRepo(t)

	payload := map[string]any{
		"id":         uuid.New(),
		"name":       "Mug",
		"slug":       "same-slug",
		"price":      int64(100),
		"created_at": time.Now().UTC(),
	}
	_, err := r.InsertProductPruned(context.Background(), payload)
	require.NoError(t, err)

	payload["id"] = uuid.New()
	_, err = r.InsertProductPruned(context.Background(), payload)
	require.Error(t, err, "duplicate slug is not a pruning case")
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := models.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, r.CreateUser(ctx, &u))

	dup := models.User{Email: "a@example.com", PasswordHash: "y"}
	require.ErrorIs(t, r.CreateUser(ctx, &dup), ErrUserAlreadyExists)
}

func TestCreateUserCreatesCustomerProfile(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := models.User{Email: "b@example.com", PasswordHash: "x"}
	require.NoError(t, r.CreateUser(ctx, &u))

	role, err := r.RoleForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "customer", role)
}

func TestDeleteProductNotFound(t *testing.T) {
	r := newTestRepo(t)
	err := r.DeleteProduct(context.Background(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCountProducts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	products := []models.Product{
		{Name: "a", Slug: "a", Price: 1, IsSale: true},
		{Name: "b", Slug: "b", Price: 1, IsBestseller: true},
		{Name: "c", Slug: "c", Price: 1, IsBestseller: true, IsNew: true},
	}
	for i := range products {
		require.NoError(t, r.DB.Create(&products[i]).Error)
	}

	stats, err := r.CountProducts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Total)
	require.EqualValues(t, 1, stats.Sale)
	require.EqualValues(t, 2, stats.Bestseller)
	require.EqualValues(t, 1, stats.New)
}

func TestListWishlistJoinsProducts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := models.User{Email: "w@example.com", PasswordHash: "x"}
	require.NoError(t, r.CreateUser(ctx, &u))

	p := models.Product{Name: "Mug", Slug: "mug", Price: 100}
	require.NoError(t, r.DB.Create(&p).Error)

	item := models.WishlistItem{UserID: u.ID, ProductID: p.ID}
	require.NoError(t, r.AddWishlistItem(ctx, &item))

	// An orphaned wishlist row is skipped, not surfaced as an error.
	orphan := models.WishlistItem{UserID: u.ID, ProductID: uuid.New()}
	require.NoError(t, r.AddWishlistItem(ctx, &orphan))

	entries, err := r.ListWishlist(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, p.ID, entries[0].Product.ID)
}
