package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of dashboard roles. Keep ParseRole exhaustive when
// adding a role so every call site is forced through it.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleSalesExecutive Role = "SALES_EXECUTIVE"
)

// ParseRole maps a raw string onto a known role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSalesExecutive:
		return RoleSalesExecutive, true
	default:
		return "", false
	}
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Deleted reports whether the user has been soft-deleted.
func (u User) Deleted() bool {
	return u.DeletedAt != nil
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	Brand             string          `json:"brand"`
	ThumbnailImageURL string          `json:"thumbnailImageUrl"`
	ShortDescription  string          `json:"shortDescription"`
	LongDescription   string          `json:"longDescription"`
	GalleryImages     []GalleryImage  `json:"galleryImages"`
	Categories        []Category      `json:"categories"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// GalleryImage is an exclusive child of a Product; it never outlives its
// owning row.
type GalleryImage struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	URL       string `json:"url"`
}
