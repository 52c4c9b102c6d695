package persistence

import (
	"context"

	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements identity.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Customer, error) {
	var c identity.Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindByIDForUpdate finds and row-locks a customer
func (r *GormCustomerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*identity.Customer, error) {
	var c identity.Customer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindByPhone finds a customer by E.164 phone
func (r *GormCustomerRepository) FindByPhone(ctx context.Context, phone string) (*identity.Customer, error) {
	var c identity.Customer
	if err := r.db.WithContext(ctx).First(&c, "phone = ?", phone).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindByEmail finds a customer by lower-cased email
func (r *GormCustomerRepository) FindByEmail(ctx context.Context, email string) (*identity.Customer, error) {
	var c identity.Customer
	if err := r.db.WithContext(ctx).First(&c, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindAll lists customers
func (r *GormCustomerRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Customer, int64, error) {
	query := r.db.WithContext(ctx).Model(&identity.Customer{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}
	if blocked, ok := filter.Filters["blocked"].(bool); ok {
		query = query.Where("blocked = ?", blocked)
	}
	if debtors, ok := filter.Filters["with_debt"].(bool); ok && debtors {
		query = query.Where("debt > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var customers []identity.Customer
	if err := paginate(query, filter, CustomerSortFields, "name").Find(&customers).Error; err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, c *identity.Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}

var _ identity.CustomerRepository = (*GormCustomerRepository)(nil)

// GormAdminUserRepository implements identity.AdminUserRepository using GORM
type GormAdminUserRepository struct {
	db *gorm.DB
}

// NewGormAdminUserRepository creates a new GormAdminUserRepository
func NewGormAdminUserRepository(db *gorm.DB) *GormAdminUserRepository {
	return &GormAdminUserRepository{db: db}
}

// FindByID finds an admin by ID
func (r *GormAdminUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.AdminUser, error) {
	var a identity.AdminUser
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// FindByEmail finds an admin by lower-cased email
func (r *GormAdminUserRepository) FindByEmail(ctx context.Context, email string) (*identity.AdminUser, error) {
	var a identity.AdminUser
	if err := r.db.WithContext(ctx).First(&a, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Save creates or updates an admin
func (r *GormAdminUserRepository) Save(ctx context.Context, a *identity.AdminUser) error {
	return r.db.WithContext(ctx).Save(a).Error
}

var _ identity.AdminUserRepository = (*GormAdminUserRepository)(nil)
