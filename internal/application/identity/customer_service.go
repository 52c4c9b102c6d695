package identity

import (
	"context"
	"errors"
	"strings"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerService manages customers from the back office
type CustomerService struct {
	customers      identity.CustomerRepository
	phoneRegion    string
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customers identity.CustomerRepository, phoneRegion string, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{customers: customers, phoneRegion: phoneRegion, logger: logger}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CustomerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// List returns a page of customers
func (s *CustomerService) List(ctx context.Context, filter CustomerListFilter) ([]CustomerResponse, int64, error) {
	f := shared.DefaultFilter()
	f.OrderBy = "name"
	f.OrderDir = "asc"
	f.Search = filter.Search
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	if filter.Blocked != nil {
		f.Filters["blocked"] = *filter.Blocked
	}
	if filter.WithDebt {
		f.Filters["with_debt"] = true
	}

	customers, total, err := s.customers.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = ToCustomerResponse(&customers[i])
	}
	return out, total, nil
}

// Get returns a customer by ID
func (s *CustomerService) Get(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	c, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

// Create registers a customer without a password
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, uuid.Nil, phone, req.Email); err != nil {
		return nil, err
	}

	c, err := identity.NewCustomer(req.Name, phone, req.Email)
	if err != nil {
		return nil, err
	}
	c.Notes = strings.TrimSpace(req.Notes)
	if err := s.customers.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("customer created", zap.String("customer_id", c.ID.String()), zap.String("contact", c.Contact()))
	appshared.PublishEvents(ctx, s.eventPublisher, c)

	resp := ToCustomerResponse(c)
	return &resp, nil
}

// Update changes profile fields and the blocked flag
func (s *CustomerService) Update(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	c, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, notes := c.Name, c.Notes
	if req.Name != nil {
		name = *req.Name
	}
	if req.Notes != nil {
		notes = *req.Notes
	}
	if err := c.UpdateProfile(name, notes); err != nil {
		return nil, err
	}

	var phone, email string
	if req.Phone != nil {
		if phone, err = s.normalizePhone(*req.Phone); err != nil {
			return nil, err
		}
	}
	if req.Email != nil {
		email = *req.Email
	}
	if err := s.ensureUnique(ctx, c.ID, phone, email); err != nil {
		return nil, err
	}
	if phone != "" {
		c.SetPhone(phone)
	}
	if email != "" {
		if err := c.SetEmail(email); err != nil {
			return nil, err
		}
	}

	if req.Blocked != nil && *req.Blocked != c.Blocked {
		if *req.Blocked {
			c.Block()
		} else {
			c.Unblock()
		}
		s.logger.Info("customer access changed", zap.String("customer_id", c.ID.String()), zap.Bool("blocked", c.Blocked))
	}

	if err := s.customers.Save(ctx, c); err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

func (s *CustomerService) normalizePhone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return identity.NormalizePhone(raw, s.phoneRegion)
}

// ensureUnique rejects a phone or email used by another customer than self
func (s *CustomerService) ensureUnique(ctx context.Context, self uuid.UUID, phone, email string) error {
	if phone != "" {
		existing, err := s.customers.FindByPhone(ctx, phone)
		if err == nil && existing.ID != self {
			return ErrPhoneTaken
		}
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		existing, err := s.customers.FindByEmail(ctx, email)
		if err == nil && existing.ID != self {
			return ErrEmailTaken
		}
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
	}
	return nil
}
