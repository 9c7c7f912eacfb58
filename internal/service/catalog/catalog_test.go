package catalog

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Gifts & Souvenirs!!":  "gifts-souvenirs",
		"  Blue  Mug  ":        "blue-mug",
		"already-a-slug":       "already-a-slug",
		"UPPER Case":           "upper-case",
		"trailing--- hyphens-": "trailing-hyphens",
		"":                     "",
		"!!!":                  "",
	}
	for input, want := range cases {
		require.Equal(t, want, Slugify(input), "input %q", input)
	}
}

func TestCentsFromInput(t *testing.T) {
	cents := func(v int64) *int64 { return &v }

	cases := []struct {
		input string
		want  *int64
	}{
		{"29.99", cents(2999)},
		{"₦1,500.00", cents(150000)},
		{"0.005", cents(1)},
		{"10", cents(1000)},
		{"-5.50", cents(-550)},
		{"", nil},
		{"abc", nil},
		{"..", nil},
	}
	for _, tc := range cases {
		got := CentsFromInput(tc.input)
		if tc.want == nil {
			require.Nil(t, got, "input %q", tc.input)
		} else {
			require.NotNil(t, got, "input %q", tc.input)
			require.Equal(t, *tc.want, *got, "input %q", tc.input)
		}
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Category{}, &models.Product{}))
	return &Service{Repo: &repo.GormRepo{DB: db}}
}

func TestCreateProduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:          "Blue Ceramic Mug",
		Price:         "29.99",
		Tags:          "kitchen, gift , ",
		StockQuantity: 5,
		IsNew:         true,
	})
	require.NoError(t, err)
	require.Equal(t, "blue-ceramic-mug", result.Slug)
	require.Empty(t, result.IgnoredFields)

	prod, _, err := svc.GetProductBySlug(ctx, "blue-ceramic-mug")
	require.NoError(t, err)
	require.Equal(t, int64(2999), prod.Price)
	require.Equal(t, "individual", prod.ProductType)
	require.Equal(t, 5, prod.StockQuantity)
	require.True(t, prod.IsNew)
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, CreateProductInput{Name: "  ", Price: "10"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Mug", Price: "not a price"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Mug", Price: "10", CategoryID: "not-a-uuid"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPatchProductReslugifiesOnRename(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Old Name", Price: "10"})
	require.NoError(t, err)

	newName := "Fancy & New Name"
	prod, err := svc.PatchProduct(ctx, created.ID, PatchProductRequest{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "fancy-new-name", prod.Slug)
}

func TestPatchProductPartialUpdate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Mug", Price: "10", StockQuantity: 5})
	require.NoError(t, err)

	price := "15.50"
	prod, err := svc.PatchProduct(ctx, created.ID, PatchProductRequest{Price: &price})
	require.NoError(t, err)
	require.Equal(t, int64(1550), prod.Price)
	require.Equal(t, "Mug", prod.Name, "unset fields stay untouched")
	require.Equal(t, 5, prod.StockQuantity)
}

func TestPatchProductRejectsNegativeStock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Mug", Price: "10"})
	require.NoError(t, err)

	bad := -1
	_, err = svc.PatchProduct(ctx, created.ID, PatchProductRequest{StockQuantity: &bad})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPatchProductNotFound(t *testing.T) {
	svc := newTestService(t)
	name := "x"
	_, err := svc.PatchProduct(context.Background(), uuid.New(), PatchProductRequest{Name: &name})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, "Gifts & Souvenirs")
	require.NoError(t, err)
	require.Equal(t, "gifts-souvenirs", cat.Slug)

	_, err = svc.CreateCategory(ctx, "   ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetProductBySlugToleratesMissingCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:       "Mug",
		Price:      "10",
		CategoryID: uuid.NewString(),
	})
	require.NoError(t, err)

	prod, category, err := svc.GetProductBySlug(ctx, created.Slug)
	require.NoError(t, err)
	require.NotNil(t, prod)
	require.Nil(t, category, "dangling category reference renders without one")
}
