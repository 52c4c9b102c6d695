package identity

import (
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Customer is a wholesale buyer. Customers may log in with their own token.
type Customer struct {
	shared.BaseAggregateRoot
	Name         string          `gorm:"type:varchar(200);not null"`
	Phone        *string         `gorm:"type:varchar(20);uniqueIndex"`
	Email        *string         `gorm:"type:varchar(200);uniqueIndex"`
	PasswordHash string          `gorm:"type:varchar(255)"`
	Blocked      bool            `gorm:"not null;default:false"`
	TotalSpent   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	OrdersCount  int             `gorm:"not null;default:0"`
	Debt         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Notes        string          `gorm:"type:text"`
	LastLoginAt  *time.Time
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a customer. phone must already be normalized.
func NewCustomer(name, phone, email string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	c := &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		TotalSpent:        decimal.Zero,
		Debt:              decimal.Zero,
	}
	if phone != "" {
		c.Phone = &phone
	}
	if email != "" {
		if err := c.SetEmail(email); err != nil {
			return nil, err
		}
	}
	if c.Phone == nil && c.Email == nil {
		return nil, shared.NewDomainError("INVALID_CONTACT", "Phone or email is required")
	}
	c.AddDomainEvent(NewCustomerRegisteredEvent(c))
	return c, nil
}

// SetEmail sets a lower-cased, validated email
func (c *Customer) SetEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return err
	}
	c.Email = &email
	c.UpdatedAt = time.Now()
	return nil
}

// SetPassword hashes and stores a new password
func (c *Customer) SetPassword(password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	c.PasswordHash = hash
	c.UpdatedAt = time.Now()
	return nil
}

// VerifyPassword checks a login attempt
func (c *Customer) VerifyPassword(password string) bool {
	return verifyPassword(c.PasswordHash, password)
}

// CanLogin is false for blocked customers and customers without a password
func (c *Customer) CanLogin() bool {
	return !c.Blocked && c.PasswordHash != ""
}

// RecordLogin stores the login time
func (c *Customer) RecordLogin() {
	now := time.Now()
	c.LastLoginAt = &now
}

// Block prevents the customer from logging in
func (c *Customer) Block() {
	c.Blocked = true
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// Unblock allows the customer to log in again
func (c *Customer) Unblock() {
	c.Blocked = false
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// UpdateProfile renames the customer and replaces the notes
func (c *Customer) UpdateProfile(name, notes string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	c.Name = name
	c.Notes = strings.TrimSpace(notes)
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// SetPhone sets an already normalized phone number
func (c *Customer) SetPhone(phone string) {
	c.Phone = &phone
	c.UpdatedAt = time.Now()
}

// RecordSale adds a completed sale to the customer's counters.
// Unpaid sales also increase the debt.
func (c *Customer) RecordSale(total decimal.Decimal, pending bool) {
	c.OrdersCount++
	c.TotalSpent = c.TotalSpent.Add(total)
	if pending {
		c.Debt = c.Debt.Add(total)
	}
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// RecordPayment settles debt for a previously pending sale
func (c *Customer) RecordPayment(amount decimal.Decimal) {
	c.Debt = floorZero(c.Debt.Sub(amount))
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// RecordReturn reverses part of a sale. wasPending tells whether the sale was still unpaid.
func (c *Customer) RecordReturn(amount decimal.Decimal, wasPending bool) {
	c.TotalSpent = floorZero(c.TotalSpent.Sub(amount))
	if wasPending {
		c.Debt = floorZero(c.Debt.Sub(amount))
	}
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// Contact returns the phone if set, else the email
func (c *Customer) Contact() string {
	if c.Phone != nil {
		return *c.Phone
	}
	if c.Email != nil {
		return *c.Email
	}
	return ""
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
