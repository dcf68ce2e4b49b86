package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	DeletedAt    *time.Time
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type CategoryModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Slug      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (CategoryModel) TableName() string { return "categories" }

type ProductModel struct {
	ID                string          `gorm:"primaryKey"`
	Title             string          `gorm:"not null"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Brand             string          `gorm:"not null"`
	ThumbnailImageURL string          `gorm:"not null"`
	ShortDescription  string          `gorm:"size:200;not null"`
	LongDescription   string          `gorm:"type:text;not null"`
	CreatedAt         time.Time       `gorm:"not null"`
}

func (ProductModel) TableName() string { return "products" }

type GalleryImageModel struct {
	ID        string `gorm:"primaryKey"`
	ProductID string `gorm:"not null;index"`
	URL       string `gorm:"not null"`
}

func (GalleryImageModel) TableName() string { return "gallery_images" }

// ProductCategoryModel is the join row for the product/category
// many-to-many; the pair is the whole identity.
type ProductCategoryModel struct {
	ProductID  string `gorm:"primaryKey"`
	CategoryID string `gorm:"primaryKey;index"`
}

func (ProductCategoryModel) TableName() string { return "product_categories" }
