package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
)

var ErrValidation = errors.New("validation failed")

type Service struct {
	Repo *repo.GormRepo
}

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces   = regexp.MustCompile(`\s+`)
	slugHyphens  = regexp.MustCompile(`-+`)
	centsAllowed = regexp.MustCompile(`[^0-9.\-]`)
)

// Slugify lowercases, strips punctuation, and collapses whitespace and
// repeated hyphens: "Gifts & Souvenirs!!" -> "gifts-souvenirs".
func Slugify(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CentsFromInput tolerantly parses a decimal price string into minor
// currency units, rounding to the nearest cent. Returns nil when no amount
// can be read.
func CentsFromInput(value string) *int64 {
	if value == "" {
		return nil
	}
	normalized := centsAllowed.ReplaceAllString(value, "")
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return nil
	}
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return &cents
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidation
	}
	category := models.Category{
		ID:   uuid.New(),
		Name: name,
		Slug: Slugify(name),
	}
	if err := s.Repo.CreateCategory(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx)
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.Repo.DeleteCategory(ctx, id)
}

// CreateProductInput mirrors the admin form: price fields arrive as decimal
// strings, tags as a comma-separated list.
type CreateProductInput struct {
	Name          string                `json:"name"`
	Subtitle      string                `json:"subtitle"`
	Description   string                `json:"description"`
	Price         string                `json:"price"`
	OldPrice      string                `json:"old_price"`
	IsSale        bool                  `json:"is_sale"`
	IsBestseller  bool                  `json:"is_bestseller"`
	IsNew         bool                  `json:"is_new"`
	CategoryID    string                `json:"category_id"`
	ProductType   string                `json:"product_type"`
	StockQuantity int                   `json:"stock_quantity"`
	Tags          string                `json:"tags"`
	Images        []models.ProductImage `json:"images"`
}

type CreateProductResult struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	IgnoredFields []string  `json:"ignored_fields,omitempty"`
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CreateProduct validates the form, converts prices to minor units, and
// inserts through the column-pruning path. Fields the backend rejected are
// reported back, never silently lost.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*CreateProductResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrValidation
	}
	priceCents := CentsFromInput(in.Price)
	if priceCents == nil {
		return nil, ErrValidation
	}

	id := uuid.New()
	payload := map[string]any{
		"id":             id,
		"name":           name,
		"slug":           Slugify(name),
		"price":          *priceCents,
		"is_sale":        in.IsSale,
		"is_bestseller":  in.IsBestseller,
		"is_new":         in.IsNew,
		"product_type":   in.ProductType,
		"stock_quantity": in.StockQuantity,
		"created_at":     time.Now().UTC(),
	}
	if in.ProductType == "" {
		payload["product_type"] = "individual"
	}
	if in.Subtitle != "" {
		payload["subtitle"] = in.Subtitle
	}
	if in.Description != "" {
		payload["description"] = in.Description
	}
	if old := CentsFromInput(in.OldPrice); old != nil {
		payload["old_price"] = *old
	}
	if in.CategoryID != "" {
		categoryID, err := uuid.Parse(in.CategoryID)
		if err != nil {
			return nil, ErrValidation
		}
		payload["category_id"] = categoryID
	}
	if tags := splitTags(in.Tags); len(tags) > 0 {
		raw, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		payload["tags"] = string(raw)
	}
	if len(in.Images) > 0 {
		raw, err := json.Marshal(in.Images)
		if err != nil {
			return nil, err
		}
		payload["images"] = string(raw)
	}

	removed, err := s.Repo.InsertProductPruned(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &CreateProductResult{ID: id, Slug: payload["slug"].(string), IgnoredFields: removed}, nil
}

// PatchProductRequest uses pointer fields so absent keys leave the product
// untouched.
type PatchProductRequest struct {
	Name          *string                `json:"name"`
	Subtitle      *string                `json:"subtitle"`
	Description   *string                `json:"description"`
	Price         *string                `json:"price"`
	OldPrice      *string                `json:"old_price"`
	IsSale        *bool                  `json:"is_sale"`
	IsBestseller  *bool                  `json:"is_bestseller"`
	IsNew         *bool                  `json:"is_new"`
	ProductType   *string                `json:"product_type"`
	StockQuantity *int                   `json:"stock_quantity"`
	Tags          *string                `json:"tags"`
	Images        *[]models.ProductImage `json:"images"`
}

func (s *Service) PatchProduct(ctx context.Context, id uuid.UUID, req PatchProductRequest) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrValidation
		}
		prod.Name = name
		prod.Slug = Slugify(name)
	}
	if req.Subtitle != nil {
		prod.Subtitle = req.Subtitle
	}
	if req.Description != nil {
		prod.Description = req.Description
	}
	if req.Price != nil {
		cents := CentsFromInput(*req.Price)
		if cents == nil {
			return nil, ErrValidation
		}
		prod.Price = *cents
	}
	if req.OldPrice != nil {
		prod.OldPrice = CentsFromInput(*req.OldPrice)
	}
	if req.IsSale != nil {
		prod.IsSale = *req.IsSale
	}
	if req.IsBestseller != nil {
		prod.IsBestseller = *req.IsBestseller
	}
	if req.IsNew != nil {
		prod.IsNew = *req.IsNew
	}
	if req.ProductType != nil {
		prod.ProductType = *req.ProductType
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return nil, ErrValidation
		}
		prod.StockQuantity = *req.StockQuantity
	}
	if req.Tags != nil {
		prod.Tags = splitTags(*req.Tags)
	}
	if req.Images != nil {
		prod.Images = *req.Images
	}

	if err := s.Repo.SaveProduct(ctx, prod); err != nil {
		return nil, err
	}
	return prod, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.Repo.DeleteProduct(ctx, id)
}

func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, *models.Category, error) {
	prod, err := s.Repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	if prod.CategoryID == nil {
		return prod, nil, nil
	}
	category, err := s.Repo.GetCategory(ctx, *prod.CategoryID)
	if err != nil {
		// Category lookup is secondary; the product page renders without it.
		return prod, nil, nil
	}
	return prod, category, nil
}

func (s *Service) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.ListProducts(ctx, offset, limit)
}

func (s *Service) Stats(ctx context.Context) (*repo.ProductStats, error) {
	return s.Repo.CountProducts(ctx)
}

func (s *Service) RecentProducts(ctx context.Context, limit int) ([]models.Product, error) {
	return s.Repo.RecentProducts(ctx, limit)
}
