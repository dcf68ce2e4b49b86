package app

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopadmin/pkg/domain"
)

const (
	maxShortDescription = 200
	minLongDescription  = 10
	minPasswordLength   = 8
)

// ProductInput is the complete desired state of a product. Updates replace
// category links and gallery images wholesale, so callers resubmit the full
// sets every time.
type ProductInput struct {
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	Brand             string          `json:"brand"`
	ThumbnailImageURL string          `json:"thumbnailImageUrl"`
	GalleryImages     []string        `json:"galleryImages"`
	ShortDescription  string          `json:"shortDescription"`
	LongDescription   string          `json:"longDescription"`
	CategoryIDs       []string        `json:"categoryIds"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !in.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Brand) == "" {
		return fmt.Errorf("%w: brand is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ThumbnailImageURL) == "" {
		return fmt.Errorf("%w: thumbnail image is required", ErrInvalidInput)
	}
	if len(in.GalleryImages) == 0 {
		return fmt.Errorf("%w: at least one gallery image is required", ErrInvalidInput)
	}
	if len(in.ShortDescription) > maxShortDescription {
		return fmt.Errorf("%w: short description must be at most %d characters", ErrInvalidInput, maxShortDescription)
	}
	if len(in.LongDescription) < minLongDescription {
		return fmt.Errorf("%w: long description must be at least %d characters", ErrInvalidInput, minLongDescription)
	}
	if len(in.CategoryIDs) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidInput)
	}
	return nil
}

// UserInput describes a new dashboard account.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in UserInput) validate() (domain.Role, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return "", fmt.Errorf("%w: unknown role", ErrInvalidInput)
	}
	return role, nil
}
