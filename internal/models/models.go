package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductImage mirrors the record returned by the CDN after a signed upload.
type ProductImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
}

// Product prices are stored in minor currency units (kobo).
type Product struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"      json:"id"`
	Slug          string         `gorm:"uniqueIndex;not null"      json:"slug"`
	Name          string         `gorm:"not null"                  json:"name"`
	Subtitle      *string        `json:"subtitle"`
	Description   *string        `json:"description"`
	Price         int64          `gorm:"not null"                  json:"price"`
	OldPrice      *int64         `json:"old_price"`
	IsSale        bool           `gorm:"default:false"             json:"is_sale"`
	IsBestseller  bool           `gorm:"default:false"             json:"is_bestseller"`
	IsNew         bool           `gorm:"default:false"             json:"is_new"`
	CategoryID    *uuid.UUID     `gorm:"type:uuid;index"           json:"category_id"`
	ProductType   string         `gorm:"default:individual"        json:"product_type"`
	StockQuantity int            `gorm:"default:0"                 json:"stock_quantity"`
	Tags          []string       `gorm:"serializer:json"           json:"tags"`
	Images        []ProductImage `gorm:"serializer:json"           json:"images"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null"             json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null"             json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile carries the role used by the admin route guard. One row per user,
// sharing the user's id.
type Profile struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName  *string    `json:"first_name"`
	LastName   *string    `json:"last_name"`
	Role       string     `gorm:"not null;default:customer" json:"role"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Token     string    `gorm:"unique;not null"     json:"token"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt int64     `gorm:"not null"            json:"expires_at"`
	Revoked   bool      `gorm:"default:false"       json:"revoked"`
}

type Address struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;index;not null"  json:"user_id"`
	RecipientName     string    `gorm:"not null"                  json:"recipient_name"`
	Phone             string    `gorm:"not null"                  json:"phone"`
	Line1             string    `gorm:"not null"                  json:"line1"`
	Line2             *string   `json:"line2"`
	City              string    `gorm:"not null"                  json:"city"`
	State             string    `gorm:"not null"                  json:"state"`
	PostalCode        *string   `json:"postal_code"`
	CountryCode       string    `gorm:"default:NG"                json:"country_code"`
	IsDefaultShipping bool      `gorm:"default:false"             json:"is_default_shipping"`
	IsDefaultBilling  bool      `gorm:"default:false"             json:"is_default_billing"`
	CreatedAt         time.Time `json:"created_at"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type WishlistItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"       json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (w *WishlistItem) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
