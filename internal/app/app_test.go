package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"shopadmin/internal/authz"
	"shopadmin/internal/cache"
	"shopadmin/internal/session"
	"shopadmin/pkg/auth"
	"shopadmin/pkg/domain"
	"shopadmin/pkg/storage"
	"shopadmin/pkg/store"
)

// bucketFake records stored and removed objects for asset assertions.
type bucketFake struct {
	mu      sync.Mutex
	removed []string
}

func (f *bucketFake) Put(_ context.Context, _ string, _ io.Reader, _ int64, _ string) error {
	return nil
}

func (f *bucketFake) Remove(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, keys...)
	return nil
}

func (f *bucketFake) PublicURL(key string) string {
	return "https://storage.example.com/product-images/" + key
}

func (f *bucketFake) Bucket() string { return "product-images" }

func (f *bucketFake) removedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

type fixture struct {
	app     *App
	store   *store.MemoryStore
	bucket  *bucketFake
	adminID string
}

func adminSession(f *fixture) *session.Session {
	return &session.Session{UserID: f.adminID, Role: domain.RoleAdmin}
}

func salesSession() *session.Session {
	return &session.Session{UserID: "sales-1", Role: domain.RoleSalesExecutive}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	redis := miniredis.RunT(t)
	listings, err := cache.NewListingCache(redis.Addr(), "", time.Minute)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	memory := store.NewMemoryStore()
	bucket := &bucketFake{}
	a, err := New(Config{
		Store:    memory,
		Assets:   storage.NewAssetStore(bucket),
		Listings: listings,
		Tokens:   tokens,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	hash, err := auth.HashPassword("admin123!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin := domain.User{
		ID:           "admin-1",
		Name:         "Admin User",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := memory.CreateUser(admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return &fixture{app: a, store: memory, bucket: bucket, adminID: admin.ID}
}

func createCategory(t *testing.T, f *fixture, name string) domain.Category {
	t.Helper()
	category, err := f.app.CreateCategory(context.Background(), adminSession(f), name)
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return category
}

func lampInput(categoryIDs []string) ProductInput {
	return ProductInput{
		Title:             "Lamp",
		Price:             decimal.NewFromFloat(19.99),
		Brand:             "Acme",
		ThumbnailImageURL: "https://storage.example.com/product-images/products/thumb.png",
		GalleryImages:     []string{"https://storage.example.com/product-images/products/g1.png"},
		ShortDescription:  "A lamp",
		LongDescription:   "A very nice desk lamp for your office.",
		CategoryIDs:       categoryIDs,
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	user, token, err := f.app.Login("admin@example.com", "admin123!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != f.adminID || token == "" {
		t.Fatalf("unexpected login result: id=%q token=%q", user.ID, token)
	}

	if _, _, err := f.app.Login("admin@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := f.app.Login("nobody@example.com", "admin123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsSoftDeletedUser(t *testing.T) {
	f := newFixture(t)
	sess := adminSession(f)
	user, err := f.app.CreateUser(context.Background(), sess, UserInput{
		Name:     "Sales Executive",
		Email:    "sales@example.com",
		Password: "sales1234",
		Role:     "SALES_EXECUTIVE",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := f.app.SoftDeleteUser(context.Background(), sess, user.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, _, err := f.app.Login("sales@example.com", "sales1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("deleted user login: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestMutatorsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.app.CreateCategory(ctx, salesSession(), "Electronics"); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("sales create category: expected ErrForbidden, got %v", err)
	}
	if _, err := f.app.CreateCategory(ctx, nil, "Electronics"); !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("anonymous create category: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.app.CreateProduct(ctx, salesSession(), lampInput([]string{"c1"})); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("sales create product: expected ErrForbidden, got %v", err)
	}
	if err := f.app.SoftDeleteUser(ctx, salesSession(), f.adminID); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("sales delete user: expected ErrForbidden, got %v", err)
	}
}

func TestListingsAllowSalesExecutive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createCategory(t, f, "Electronics")

	categories, err := f.app.ListCategories(ctx, salesSession())
	if err != nil {
		t.Fatalf("sales list categories: %v", err)
	}
	if len(categories) != 1 {
		t.Fatalf("categories = %d, want 1", len(categories))
	}
	if _, err := f.app.ListProducts(ctx, salesSession()); err != nil {
		t.Fatalf("sales list products: %v", err)
	}
	if _, err := f.app.ListUsers(ctx, salesSession()); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("sales list users: expected ErrForbidden, got %v", err)
	}
}

func TestCategorySlugAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category := createCategory(t, f, "Home & Garden")
	if category.Slug != "home-garden" {
		t.Fatalf("slug = %q, want home-garden", category.Slug)
	}
	if _, err := f.app.CreateCategory(ctx, adminSession(f), "home   garden"); !errors.Is(err, ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	category := createCategory(t, f, "Electronics")
	if _, err := f.app.CreateProduct(ctx, sess, lampInput([]string{category.ID})); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := f.app.DeleteCategory(ctx, sess, category.ID); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	category := createCategory(t, f, "Electronics")
	created, err := f.app.CreateProduct(ctx, sess, lampInput([]string{category.ID}))
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	got, err := f.app.GetProduct(sess, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Title != "Lamp" || got.Brand != "Acme" {
		t.Fatalf("unexpected product: %+v", got)
	}
	if !got.Price.Equal(decimal.NewFromFloat(19.99)) {
		t.Fatalf("price = %s, want 19.99", got.Price)
	}
	if len(got.Categories) != 1 || got.Categories[0].Slug != "electronics" {
		t.Fatalf("categories = %+v, want one electronics link", got.Categories)
	}
	if len(got.GalleryImages) != 1 {
		t.Fatalf("gallery = %d, want 1", len(got.GalleryImages))
	}
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	in := lampInput([]string{"c1"})
	in.Price = decimal.NewFromInt(-5)
	if _, err := f.app.CreateProduct(ctx, sess, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative price: expected ErrInvalidInput, got %v", err)
	}

	in = lampInput([]string{"c1"})
	in.LongDescription = "too short"
	if _, err := f.app.CreateProduct(ctx, sess, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short long description: expected ErrInvalidInput, got %v", err)
	}

	in = lampInput(nil)
	if _, err := f.app.CreateProduct(ctx, sess, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("no categories: expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateProductReplacesGalleryAndCleansUpAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	category := createCategory(t, f, "Electronics")
	in := lampInput([]string{category.ID})
	in.GalleryImages = []string{
		"https://storage.example.com/product-images/products/a.png",
		"https://storage.example.com/product-images/products/b.png",
		"https://storage.example.com/product-images/products/c.png",
	}
	created, err := f.app.CreateProduct(ctx, sess, in)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	in.GalleryImages = []string{
		"https://storage.example.com/product-images/products/a.png",
		"https://storage.example.com/product-images/products/d.png",
	}
	if err := f.app.UpdateProduct(ctx, sess, created.ID, in); err != nil {
		t.Fatalf("update product: %v", err)
	}

	got, err := f.app.GetProduct(sess, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if len(got.GalleryImages) != 2 {
		t.Fatalf("gallery = %d, want exactly [a, d]", len(got.GalleryImages))
	}

	removed := f.bucket.removedKeys()
	want := map[string]bool{"products/b.png": false, "products/c.png": false}
	for _, key := range removed {
		if _, ok := want[key]; ok {
			want[key] = true
		} else {
			t.Fatalf("unexpectedly removed %q", key)
		}
	}
	for key, seen := range want {
		if !seen {
			t.Fatalf("expected %q to be scheduled for deletion", key)
		}
	}
}

func TestDeleteProductRemovesAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	category := createCategory(t, f, "Electronics")
	created, err := f.app.CreateProduct(ctx, sess, lampInput([]string{category.ID}))
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := f.app.DeleteProduct(ctx, sess, created.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := f.app.GetProduct(sess, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	removed := f.bucket.removedKeys()
	if len(removed) != 2 {
		t.Fatalf("removed = %v, want thumbnail and one gallery image", removed)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	in := UserInput{Name: "Dup", Email: "admin@example.com", Password: "password1", Role: "SALES_EXECUTIVE"}
	if _, err := f.app.CreateUser(ctx, sess, in); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestSoftDeleteProtections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	if err := f.app.SoftDeleteUser(ctx, sess, f.adminID); !errors.Is(err, ErrSelfDeleteForbidden) {
		t.Fatalf("self delete: expected ErrSelfDeleteForbidden, got %v", err)
	}

	second, err := f.app.CreateUser(ctx, sess, UserInput{
		Name:     "Second Admin",
		Email:    "admin2@example.com",
		Password: "password1",
		Role:     "ADMIN",
	})
	if err != nil {
		t.Fatalf("create second admin: %v", err)
	}
	if err := f.app.SoftDeleteUser(ctx, sess, second.ID); err != nil {
		t.Fatalf("deleting one of two admins should succeed: %v", err)
	}

	// f.adminID is now the only live admin; deleting from a different admin
	// session must trip the last-admin protection.
	otherSess := &session.Session{UserID: second.ID, Role: domain.RoleAdmin}
	if err := f.app.SoftDeleteUser(ctx, otherSess, f.adminID); !errors.Is(err, ErrLastAdminProtected) {
		t.Fatalf("expected ErrLastAdminProtected, got %v", err)
	}
}

func TestListingCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := adminSession(f)

	createCategory(t, f, "Electronics")
	first, err := f.app.ListCategories(ctx, sess)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("categories = %d, want 1", len(first))
	}

	// A second create must invalidate the cached listing.
	createCategory(t, f, "Clothing")
	second, err := f.app.ListCategories(ctx, sess)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("categories = %d after create, want 2 (stale cache?)", len(second))
	}
}
