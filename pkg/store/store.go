package store

import (
	"errors"

	"shopadmin/pkg/domain"
)

// Relational invariant violations surface as sentinel errors so the app
// layer can map them onto user-visible messages.
var (
	ErrNotFound      = errors.New("record not found")
	ErrEmailExists   = errors.New("email already exists")
	ErrDuplicateSlug = errors.New("slug already exists")
	ErrCategoryInUse = errors.New("category is linked with products")
	ErrLastAdmin     = errors.New("cannot delete the last admin")
)

// Store defines persistence operations for users, categories, and products.
type Store interface {
	// users
	CreateUser(u domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UpdateUser(id, name string, role domain.Role) error
	// SoftDeleteUser marks the user deleted. The last-admin check runs in
	// the same transaction as the mark so two concurrent deletes cannot
	// both pass it.
	SoftDeleteUser(id string) error
	// HardDeleteUser physically removes the row and bypasses the
	// last-admin check. Kept for parity with the original system; not
	// reachable over HTTP.
	HardDeleteUser(id string) error
	// EnsureAdmin idempotently creates the bootstrap admin account.
	EnsureAdmin(u domain.User) error

	// categories
	CreateCategory(c domain.Category) error
	GetCategory(id string) (domain.Category, bool, error)
	ListCategories() ([]domain.Category, error)
	UpdateCategory(id, name, slug string) error
	DeleteCategory(id string) error

	// products; category links and gallery rows are replaced wholesale on
	// every write, atomically with the row itself
	CreateProduct(p domain.Product, categoryIDs []string) error
	GetProduct(id string) (domain.Product, bool, error)
	ListProducts() ([]domain.Product, error)
	UpdateProduct(p domain.Product, categoryIDs []string) error
	DeleteProduct(id string) error
}
