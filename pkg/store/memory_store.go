package store

import (
	"sort"
	"sync"
	"time"

	"shopadmin/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors the relational
// invariants of GormStore and backs the app-layer tests.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]domain.User
	categories map[string]domain.Category
	products   map[string]domain.Product
	links      map[string][]string // productID -> categoryIDs
	order      []string            // product insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		links:      make(map[string][]string),
	}
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) UpdateUser(id, name string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Name = name
	u.Role = role
	m.users[id] = u
	return nil
}

func (m *MemoryStore) SoftDeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.Role == domain.RoleAdmin {
		admins := 0
		for _, other := range m.users {
			if other.Role == domain.RoleAdmin && !other.Deleted() {
				admins++
			}
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	now := time.Now().UTC()
	u.DeletedAt = &now
	m.users[id] = u
	return nil
}

func (m *MemoryStore) HardDeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) EnsureAdmin(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) CreateCategory(c domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Slug == c.Slug {
			return ErrDuplicateSlug
		}
	}
	m.categories[c.ID] = c
	return nil
}

func (m *MemoryStore) GetCategory(id string) (domain.Category, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	return c, ok, nil
}

func (m *MemoryStore) ListCategories() ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) UpdateCategory(id, name, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return ErrNotFound
	}
	for otherID, other := range m.categories {
		if otherID != id && other.Slug == slug {
			return ErrDuplicateSlug
		}
	}
	c.Name = name
	c.Slug = slug
	m.categories[id] = c
	return nil
}

func (m *MemoryStore) DeleteCategory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return ErrNotFound
	}
	for _, categoryIDs := range m.links {
		for _, categoryID := range categoryIDs {
			if categoryID == id {
				return ErrCategoryInUse
			}
		}
	}
	delete(m.categories, id)
	return nil
}

func (m *MemoryStore) CreateProduct(p domain.Product, categoryIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	m.links[p.ID] = append([]string(nil), categoryIDs...)
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryStore) GetProduct(id string) (domain.Product, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, false, nil
	}
	return m.withCategories(p), true, nil
}

func (m *MemoryStore) ListProducts() ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Product, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.products[id]; ok {
			res = append(res, m.withCategories(p))
		}
	}
	return res, nil
}

func (m *MemoryStore) UpdateProduct(p domain.Product, categoryIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	m.products[p.ID] = p
	m.links[p.ID] = append([]string(nil), categoryIDs...)
	return nil
}

func (m *MemoryStore) DeleteProduct(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	delete(m.links, id)
	return nil
}

func (m *MemoryStore) withCategories(p domain.Product) domain.Product {
	categories := make([]domain.Category, 0, len(m.links[p.ID]))
	for _, categoryID := range m.links[p.ID] {
		if c, ok := m.categories[categoryID]; ok {
			categories = append(categories, c)
		}
	}
	p.Categories = categories
	return p
}
