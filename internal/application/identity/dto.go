package identity

import (
	"time"

	"github.com/flora/backend/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoginRequest is a customer login. Identifier is an email or a phone number.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,max=200"`
	Password   string `json:"password" binding:"required,max=72"`
}

// RegisterRequest creates a customer account. Phone or email is required.
type RegisterRequest struct {
	Name     string `json:"username" binding:"required,max=200"`
	Phone    string `json:"phone" binding:"required_without=Email,max=30"`
	Email    string `json:"email" binding:"omitempty,email,max=200"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// AdminLoginRequest is a back-office login
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=72"`
}

// Principal kinds
const (
	KindCustomer = "customer"
	KindAdmin    = "admin"
)

// PrincipalResponse describes the authenticated user
type PrincipalResponse struct {
	ID    uuid.UUID `json:"id"`
	Kind  string    `json:"kind"`
	Name  string    `json:"username"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

// AuthResponse is returned by every login endpoint
type AuthResponse struct {
	JWT       string            `json:"jwt"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      PrincipalResponse `json:"user"`
}

// CreateCustomerRequest registers a customer from the back office. No
// password is set, so the customer cannot log in until they register.
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Phone string `json:"phone" binding:"required_without=Email,max=30"`
	Email string `json:"email" binding:"omitempty,email,max=200"`
	Notes string `json:"notes" binding:"max=2000"`
}

// UpdateCustomerRequest changes profile fields. Nil fields are left as is.
type UpdateCustomerRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=200"`
	Phone   *string `json:"phone" binding:"omitempty,max=30"`
	Email   *string `json:"email" binding:"omitempty,email,max=200"`
	Notes   *string `json:"notes" binding:"omitempty,max=2000"`
	Blocked *bool   `json:"blocked"`
}

// CustomerListFilter represents filter options for customer listings
type CustomerListFilter struct {
	Search   string `form:"search"`
	Blocked  *bool  `form:"blocked"`
	WithDebt bool   `form:"with_debt"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=name created_at total_spent debt orders_count"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CustomerResponse is a customer in API responses
type CustomerResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Blocked     bool            `json:"blocked"`
	CanLogin    bool            `json:"can_login"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	OrdersCount int             `json:"orders_count"`
	Debt        decimal.Decimal `json:"debt"`
	Notes       string          `json:"notes,omitempty"`
	LastLoginAt *time.Time      `json:"last_login_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ToCustomerResponse converts a customer to its API form
func ToCustomerResponse(c *identity.Customer) CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       deref(c.Phone),
		Email:       deref(c.Email),
		Blocked:     c.Blocked,
		CanLogin:    c.CanLogin(),
		TotalSpent:  c.TotalSpent,
		OrdersCount: c.OrdersCount,
		Debt:        c.Debt,
		Notes:       c.Notes,
		LastLoginAt: c.LastLoginAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Version:     c.Version,
	}
}

func customerPrincipal(c *identity.Customer) PrincipalResponse {
	return PrincipalResponse{ID: c.ID, Kind: KindCustomer, Name: c.Name, Email: deref(c.Email), Phone: deref(c.Phone)}
}

func adminPrincipal(a *identity.AdminUser) PrincipalResponse {
	return PrincipalResponse{ID: a.ID, Kind: KindAdmin, Name: a.Name, Email: a.Email}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
