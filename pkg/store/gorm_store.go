package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopadmin/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&CategoryModel{},
		&ProductModel{},
		&GalleryImageModel{},
		&ProductCategoryModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a new user. Email uniqueness is an exact-string match
// backed by the unique index.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users, soft-deleted included, ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UpdateUser changes name and role only.
func (s *GormStore) UpdateUser(id, name string, role domain.Role) error {
	result := s.db.Model(&UserModel{}).Where("id = ?", id).Updates(map[string]any{
		"name": name,
		"role": string(role),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteUser sets deleted_at. The admin count and the mark run inside
// one transaction with the target row locked, so concurrent deletes of the
// two remaining admins cannot both succeed.
func (s *GormStore) SoftDeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var target UserModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&target, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if domain.Role(target.Role) == domain.RoleAdmin {
			var admins int64
			if err := tx.Model(&UserModel{}).
				Where("role = ? AND deleted_at IS NULL", string(domain.RoleAdmin)).
				Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		now := time.Now().UTC()
		return tx.Model(&UserModel{}).Where("id = ?", id).Update("deleted_at", now).Error
	})
}

// HardDeleteUser removes the row outright, skipping the last-admin check.
func (s *GormStore) HardDeleteUser(id string) error {
	result := s.db.Delete(&UserModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin upserts the bootstrap admin account keyed by email.
func (s *GormStore) EnsureAdmin(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&model).Error
}

// CreateCategory inserts a category; the slug carries a unique index.
func (s *GormStore) CreateCategory(c domain.Category) error {
	model := categoryToModel(c)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSlug
		}
		return err
	}
	return nil
}

func (s *GormStore) GetCategory(id string) (domain.Category, bool, error) {
	var model CategoryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Category{}, false, nil
		}
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

func (s *GormStore) ListCategories() ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateCategory(id, name, slug string) error {
	result := s.db.Model(&CategoryModel{}).Where("id = ?", id).Updates(map[string]any{
		"name": name,
		"slug": slug,
	})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSlug
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory refuses to remove a category any product still links to.
func (s *GormStore) DeleteCategory(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var linked int64
		if err := tx.Model(&ProductCategoryModel{}).Where("category_id = ?", id).Count(&linked).Error; err != nil {
			return err
		}
		if linked > 0 {
			return ErrCategoryInUse
		}
		result := tx.Delete(&CategoryModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateProduct writes the row, its category links, and its gallery rows in
// one transaction.
func (s *GormStore) CreateProduct(p domain.Product, categoryIDs []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model := productToModel(p)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return s.writeChildren(tx, p, categoryIDs)
	})
}

func (s *GormStore) GetProduct(id string) (domain.Product, bool, error) {
	var model ProductModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	product := productFromModel(model)
	if err := s.loadChildren(&product); err != nil {
		return domain.Product{}, false, err
	}
	return product, true, nil
}

func (s *GormStore) ListProducts() ([]domain.Product, error) {
	var models []ProductModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Product, 0, len(models))
	for _, m := range models {
		product := productFromModel(m)
		if err := s.loadChildren(&product); err != nil {
			return nil, err
		}
		res = append(res, product)
	}
	return res, nil
}

// UpdateProduct replaces the row's fields and the full set of category
// links and gallery rows. Delete and re-insert happen in the same
// transaction, so a failure midway never leaves a product with zero
// categories.
func (s *GormStore) UpdateProduct(p domain.Product, categoryIDs []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ProductModel{}).Where("id = ?", p.ID).Updates(map[string]any{
			"title":               p.Title,
			"price":               p.Price,
			"brand":               p.Brand,
			"thumbnail_image_url": p.ThumbnailImageURL,
			"short_description":   p.ShortDescription,
			"long_description":    p.LongDescription,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&ProductCategoryModel{}, "product_id = ?", p.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&GalleryImageModel{}, "product_id = ?", p.ID).Error; err != nil {
			return err
		}
		return s.writeChildren(tx, p, categoryIDs)
	})
}

// DeleteProduct removes the row and its owned children. Asset cleanup is
// the caller's concern.
func (s *GormStore) DeleteProduct(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ProductCategoryModel{}, "product_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&GalleryImageModel{}, "product_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&ProductModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) writeChildren(tx *gorm.DB, p domain.Product, categoryIDs []string) error {
	if len(categoryIDs) > 0 {
		links := make([]ProductCategoryModel, 0, len(categoryIDs))
		for _, categoryID := range categoryIDs {
			links = append(links, ProductCategoryModel{ProductID: p.ID, CategoryID: categoryID})
		}
		if err := tx.Create(&links).Error; err != nil {
			return err
		}
	}
	if len(p.GalleryImages) > 0 {
		images := make([]GalleryImageModel, 0, len(p.GalleryImages))
		for _, img := range p.GalleryImages {
			images = append(images, GalleryImageModel{ID: img.ID, ProductID: p.ID, URL: img.URL})
		}
		if err := tx.Create(&images).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) loadChildren(p *domain.Product) error {
	var images []GalleryImageModel
	if err := s.db.Where("product_id = ?", p.ID).Find(&images).Error; err != nil {
		return err
	}
	p.GalleryImages = make([]domain.GalleryImage, 0, len(images))
	for _, img := range images {
		p.GalleryImages = append(p.GalleryImages, domain.GalleryImage{ID: img.ID, ProductID: img.ProductID, URL: img.URL})
	}
	var categories []CategoryModel
	if err := s.db.
		Joins("JOIN product_categories ON product_categories.category_id = categories.id").
		Where("product_categories.product_id = ?", p.ID).
		Find(&categories).Error; err != nil {
		return err
	}
	p.Categories = make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		p.Categories = append(p.Categories, categoryFromModel(c))
	}
	return nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		DeletedAt:    u.DeletedAt,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role, _ := domain.ParseRole(m.Role)
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         role,
		DeletedAt:    m.DeletedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func categoryToModel(c domain.Category) CategoryModel {
	return CategoryModel{ID: c.ID, Name: c.Name, Slug: c.Slug, CreatedAt: c.CreatedAt}
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{ID: m.ID, Name: m.Name, Slug: m.Slug, CreatedAt: m.CreatedAt}
}

func productToModel(p domain.Product) ProductModel {
	return ProductModel{
		ID:                p.ID,
		Title:             p.Title,
		Price:             p.Price,
		Brand:             p.Brand,
		ThumbnailImageURL: p.ThumbnailImageURL,
		ShortDescription:  p.ShortDescription,
		LongDescription:   p.LongDescription,
		CreatedAt:         p.CreatedAt,
	}
}

func productFromModel(m ProductModel) domain.Product {
	return domain.Product{
		ID:                m.ID,
		Title:             m.Title,
		Price:             m.Price,
		Brand:             m.Brand,
		ThumbnailImageURL: m.ThumbnailImageURL,
		ShortDescription:  m.ShortDescription,
		LongDescription:   m.LongDescription,
		CreatedAt:         m.CreatedAt,
	}
}
