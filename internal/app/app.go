// Package app implements the dashboard's entity mutators. Every mutator
// runs the same strictly ordered steps: authorization gate, input
// validation, transactional persistence, listing-cache invalidation, and
// finally asset cleanup for any image reference it removed.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shopadmin/internal/authz"
	"shopadmin/internal/cache"
	"shopadmin/internal/session"
	"shopadmin/internal/util"
	"shopadmin/pkg/auth"
	"shopadmin/pkg/domain"
	"shopadmin/pkg/storage"
	"shopadmin/pkg/store"
)

// Listing cache collections.
const (
	collectionProducts   = "products"
	collectionCategories = "categories"
	collectionUsers      = "users"
)

// Config wires the application's collaborators.
type Config struct {
	Store    store.Store
	Assets   *storage.AssetStore
	Listings *cache.ListingCache
	Tokens   *auth.TokenIssuer
}

// App is the core application service.
type App struct {
	store    store.Store
	assets   *storage.AssetStore
	listings *cache.ListingCache
	tokens   *auth.TokenIssuer
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Assets == nil {
		return nil, errors.New("asset store is required")
	}
	if cfg.Listings == nil {
		return nil, errors.New("listing cache is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	return &App{
		store:    cfg.Store,
		assets:   cfg.Assets,
		listings: cfg.Listings,
		tokens:   cfg.Tokens,
	}, nil
}

// Login verifies credentials and mints a session token. Unknown email,
// soft-deleted account, and wrong password all fail identically.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("find user: %w", err)
	}
	if !ok || user.Deleted() {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Me resolves the session's user.
func (a *App) Me(sess *session.Session) (domain.User, error) {
	sess, err := authz.RequireAuth(sess)
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByID(sess.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	if !ok || user.Deleted() {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// ListCategories serves the category listing, cached per collection.
func (a *App) ListCategories(ctx context.Context, sess *session.Session) ([]domain.Category, error) {
	if _, err := authz.RequireSalesOrAdmin(sess); err != nil {
		return nil, err
	}
	var cached []domain.Category
	if a.listings.Get(ctx, collectionCategories, &cached) {
		return cached, nil
	}
	categories, err := a.store.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	a.listings.Set(ctx, collectionCategories, categories)
	return categories, nil
}

// CreateCategory derives the slug from the name and inserts the category.
func (a *App) CreateCategory(ctx context.Context, sess *session.Session, name string) (domain.Category, error) {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return domain.Category{}, err
	}
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if name == "" || slug == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	category := domain.Category{
		ID:        util.NewID(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateCategory(category); err != nil {
		return domain.Category{}, mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionCategories)
	return category, nil
}

// UpdateCategory renames a category, re-deriving its slug.
func (a *App) UpdateCategory(ctx context.Context, sess *session.Session, id, name string) error {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if name == "" || slug == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	if err := a.store.UpdateCategory(id, name, slug); err != nil {
		return mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionCategories)
	return nil
}

// DeleteCategory removes an unreferenced category.
func (a *App) DeleteCategory(ctx context.Context, sess *session.Session, id string) error {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return err
	}
	if err := a.store.DeleteCategory(id); err != nil {
		return mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionCategories)
	return nil
}

// ListProducts serves the product listing, cached per collection.
func (a *App) ListProducts(ctx context.Context, sess *session.Session) ([]domain.Product, error) {
	if _, err := authz.RequireSalesOrAdmin(sess); err != nil {
		return nil, err
	}
	var cached []domain.Product
	if a.listings.Get(ctx, collectionProducts, &cached) {
		return cached, nil
	}
	products, err := a.store.ListProducts()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	a.listings.Set(ctx, collectionProducts, products)
	return products, nil
}

// GetProduct fetches one product with its categories and gallery.
func (a *App) GetProduct(sess *session.Session, id string) (domain.Product, error) {
	if _, err := authz.RequireSalesOrAdmin(sess); err != nil {
		return domain.Product{}, err
	}
	product, ok, err := a.store.GetProduct(id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return product, nil
}

// CreateProduct inserts a product with its category links and gallery rows.
// The referenced assets were stored before this call; a failed upload never
// reaches this point.
func (a *App) CreateProduct(ctx context.Context, sess *session.Session, in ProductInput) (domain.Product, error) {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return domain.Product{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{
		ID:                util.NewID(),
		Title:             strings.TrimSpace(in.Title),
		Price:             in.Price,
		Brand:             strings.TrimSpace(in.Brand),
		ThumbnailImageURL: in.ThumbnailImageURL,
		ShortDescription:  in.ShortDescription,
		LongDescription:   in.LongDescription,
		CreatedAt:         time.Now().UTC(),
	}
	product.GalleryImages = galleryRows(product.ID, in.GalleryImages)
	if err := a.store.CreateProduct(product, in.CategoryIDs); err != nil {
		return domain.Product{}, mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionProducts)
	return product, nil
}

// UpdateProduct replaces the product's fields and the full sets of category
// links and gallery rows, then deletes any assets the update orphaned. Old
// assets go only after the new state is persisted.
func (a *App) UpdateProduct(ctx context.Context, sess *session.Session, id string, in ProductInput) error {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return err
	}
	if err := in.validate(); err != nil {
		return err
	}
	previous, ok, err := a.store.GetProduct(id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	product := domain.Product{
		ID:                id,
		Title:             strings.TrimSpace(in.Title),
		Price:             in.Price,
		Brand:             strings.TrimSpace(in.Brand),
		ThumbnailImageURL: in.ThumbnailImageURL,
		ShortDescription:  in.ShortDescription,
		LongDescription:   in.LongDescription,
	}
	product.GalleryImages = galleryRows(id, in.GalleryImages)
	if err := a.store.UpdateProduct(product, in.CategoryIDs); err != nil {
		return mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionProducts)
	a.cleanupAssets(ctx, orphanedAssets(previous, in))
	return nil
}

// DeleteProduct removes the row and then the thumbnail and gallery blobs.
// A failed blob delete is logged and accepted; the row is already gone.
func (a *App) DeleteProduct(ctx context.Context, sess *session.Session, id string) error {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return err
	}
	product, ok, err := a.store.GetProduct(id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := a.store.DeleteProduct(id); err != nil {
		return mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionProducts)

	assets := make([]string, 0, len(product.GalleryImages)+1)
	if product.ThumbnailImageURL != "" {
		assets = append(assets, product.ThumbnailImageURL)
	}
	for _, img := range product.GalleryImages {
		assets = append(assets, img.URL)
	}
	a.cleanupAssets(ctx, assets)
	return nil
}

// UploadImages stores a batch of dashboard images. Every file is validated
// before any bytes move, and one failed file never blocks the others.
func (a *App) UploadImages(ctx context.Context, sess *session.Session, uploads []storage.Upload, folder string) (storage.UploadResult, error) {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return storage.UploadResult{}, err
	}
	if len(uploads) == 0 {
		return storage.UploadResult{}, fmt.Errorf("%w: no files provided", ErrInvalidInput)
	}
	return a.assets.UploadMany(ctx, uploads, folder), nil
}

// ListUsers returns every account, soft-deleted included.
func (a *App) ListUsers(ctx context.Context, sess *session.Session) ([]domain.User, error) {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return nil, err
	}
	var cached []domain.User
	if a.listings.Get(ctx, collectionUsers, &cached) {
		return cached, nil
	}
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	a.listings.Set(ctx, collectionUsers, users)
	return users, nil
}

// CreateUser registers a dashboard account. Email uniqueness is an exact
// string match, matching the relational constraint.
func (a *App) CreateUser(ctx context.Context, sess *session.Session, in UserInput) (domain.User, error) {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return domain.User{}, err
	}
	role, err := in.validate()
	if err != nil {
		return domain.User{}, err
	}
	email := strings.TrimSpace(in.Email)
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, ErrEmailExists
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.CreateUser(user); err != nil {
		return domain.User{}, mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionUsers)
	return user, nil
}

// UpdateUser changes an account's name and role.
func (a *App) UpdateUser(ctx context.Context, sess *session.Session, id, name, rawRole string) error {
	if _, err := authz.RequireAdmin(sess); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return fmt.Errorf("%w: unknown role", ErrInvalidInput)
	}
	if err := a.store.UpdateUser(id, strings.TrimSpace(name), role); err != nil {
		return mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionUsers)
	return nil
}

// SoftDeleteUser marks an account deleted. Self-deletion is forbidden, and
// the store refuses to remove the last non-deleted admin.
func (a *App) SoftDeleteUser(ctx context.Context, sess *session.Session, id string) error {
	sess, err := authz.RequireAdmin(sess)
	if err != nil {
		return err
	}
	if sess.UserID == id {
		return ErrSelfDeleteForbidden
	}
	if err := a.store.SoftDeleteUser(id); err != nil {
		return mapStoreErr(err)
	}
	a.listings.Invalidate(ctx, collectionUsers)
	return nil
}

// cleanupAssets deletes orphaned blobs best-effort; the owning rows are
// already gone, so failures leave orphans rather than broken references.
func (a *App) cleanupAssets(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	if err := a.assets.DeleteMany(ctx, urls); err != nil {
		slog.Warn("orphaned asset cleanup failed", "count", len(urls), "err", err)
	}
}

// orphanedAssets lists blobs referenced by the previous product state but
// not by the new input.
func orphanedAssets(previous domain.Product, in ProductInput) []string {
	kept := make(map[string]struct{}, len(in.GalleryImages)+1)
	kept[in.ThumbnailImageURL] = struct{}{}
	for _, url := range in.GalleryImages {
		kept[url] = struct{}{}
	}
	var orphaned []string
	if previous.ThumbnailImageURL != "" {
		if _, ok := kept[previous.ThumbnailImageURL]; !ok {
			orphaned = append(orphaned, previous.ThumbnailImageURL)
		}
	}
	for _, img := range previous.GalleryImages {
		if _, ok := kept[img.URL]; !ok {
			orphaned = append(orphaned, img.URL)
		}
	}
	return orphaned
}

func galleryRows(productID string, urls []string) []domain.GalleryImage {
	rows := make([]domain.GalleryImage, 0, len(urls))
	for _, url := range urls {
		rows = append(rows, domain.GalleryImage{ID: util.NewID(), ProductID: productID, URL: url})
	}
	return rows
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrEmailExists):
		return ErrEmailExists
	case errors.Is(err, store.ErrDuplicateSlug):
		return ErrDuplicateSlug
	case errors.Is(err, store.ErrCategoryInUse):
		return ErrCategoryInUse
	case errors.Is(err, store.ErrLastAdmin):
		return ErrLastAdminProtected
	default:
		return err
	}
}
