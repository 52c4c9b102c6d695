package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authentication errors. Unknown accounts and wrong passwords share one
// error so logins cannot be used to probe for accounts.
var (
	ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid identifier or password")
	ErrAccountBlocked     = shared.NewDomainError("ACCOUNT_BLOCKED", "Account has been blocked")
	ErrAccountInactive    = shared.NewDomainError("ACCOUNT_DEACTIVATED", "Account has been deactivated")
	ErrPhoneTaken         = shared.NewDomainError("PHONE_TAKEN", "Phone number is already registered")
	ErrEmailTaken         = shared.NewDomainError("EMAIL_TAKEN", "Email is already registered")
)

// AuthService handles customer and admin authentication
type AuthService struct {
	customers      identity.CustomerRepository
	admins         identity.AdminUserRepository
	jwtService     *auth.JWTService
	blacklist      auth.TokenBlacklist
	phoneRegion    string
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	customers identity.CustomerRepository,
	admins identity.AdminUserRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	phoneRegion string,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		customers:   customers,
		admins:      admins,
		jwtService:  jwtService,
		blacklist:   blacklist,
		phoneRegion: phoneRegion,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AuthService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CustomerLogin authenticates a customer by email or phone
func (s *AuthService) CustomerLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	customer, err := s.findCustomerByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("customer login for unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if customer.Blocked {
		s.logger.Warn("login attempt for blocked customer", zap.String("customer_id", customer.ID.String()))
		return nil, ErrAccountBlocked
	}
	if !customer.VerifyPassword(req.Password) {
		s.logger.Warn("invalid customer password", zap.String("customer_id", customer.ID.String()))
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.IssueCustomerToken(customer.ID, customer.Name)
	if err != nil {
		s.logger.Error("failed to issue customer token", zap.Error(err))
		return nil, err
	}

	customer.RecordLogin()
	if err := s.customers.Save(ctx, customer); err != nil {
		// the login itself succeeded
		s.logger.Error("failed to record customer login", zap.Error(err))
	}

	s.logger.Info("customer logged in", zap.String("customer_id", customer.ID.String()))
	return &AuthResponse{JWT: token.AccessToken, ExpiresAt: token.ExpiresAt, User: customerPrincipal(customer)}, nil
}

func (s *AuthService) findCustomerByIdentifier(ctx context.Context, identifier string) (*identity.Customer, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.customers.FindByEmail(ctx, strings.ToLower(identifier))
	}
	phone, err := identity.NormalizePhone(identifier, s.phoneRegion)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	return s.customers.FindByPhone(ctx, phone)
}

// Register creates a customer account and logs it in. A customer created
// from the back office without a password may claim the account by
// registering with the same phone.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var phone string
	if strings.TrimSpace(req.Phone) != "" {
		p, err := identity.NormalizePhone(req.Phone, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		phone = p
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var customer *identity.Customer
	if phone != "" {
		existing, err := s.customers.FindByPhone(ctx, phone)
		switch {
		case err == nil && existing.PasswordHash != "":
			return nil, ErrPhoneTaken
		case err == nil:
			customer = existing
		case !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
	}
	if email != "" {
		existing, err := s.customers.FindByEmail(ctx, email)
		switch {
		case err == nil && (customer == nil || existing.ID != customer.ID):
			return nil, ErrEmailTaken
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
	}

	if customer == nil {
		c, err := identity.NewCustomer(req.Name, phone, email)
		if err != nil {
			return nil, err
		}
		customer = c
	} else if email != "" {
		if err := customer.SetEmail(email); err != nil {
			return nil, err
		}
	}
	if err := customer.SetPassword(req.Password); err != nil {
		return nil, err
	}
	customer.RecordLogin()
	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, err
	}

	token, err := s.jwtService.IssueCustomerToken(customer.ID, customer.Name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer registered",
		zap.String("customer_id", customer.ID.String()),
		zap.String("contact", customer.Contact()),
	)
	appshared.PublishEvents(ctx, s.eventPublisher, customer)
	return &AuthResponse{JWT: token.AccessToken, ExpiresAt: token.ExpiresAt, User: customerPrincipal(customer)}, nil
}

// AdminLogin authenticates a back-office user
func (s *AuthService) AdminLogin(ctx context.Context, req AdminLoginRequest) (*AuthResponse, error) {
	admin, err := s.admins.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("admin login for unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !admin.Active {
		s.logger.Warn("login attempt for deactivated admin", zap.String("admin_id", admin.ID.String()))
		return nil, ErrAccountInactive
	}
	if !admin.VerifyPassword(req.Password) {
		s.logger.Warn("invalid admin password", zap.String("admin_id", admin.ID.String()))
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.IssueAdminToken(admin.ID, admin.Name)
	if err != nil {
		s.logger.Error("failed to issue admin token", zap.Error(err))
		return nil, err
	}

	admin.RecordLogin()
	if err := s.admins.Save(ctx, admin); err != nil {
		s.logger.Error("failed to record admin login", zap.Error(err))
	}

	s.logger.Info("admin logged in", zap.String("admin_id", admin.ID.String()))
	return &AuthResponse{JWT: token.AccessToken, ExpiresAt: token.ExpiresAt, User: adminPrincipal(admin)}, nil
}

// Principal loads the account behind a verified token. Blocked customers and
// deactivated admins are rejected.
func (s *AuthService) Principal(ctx context.Context, kind auth.TokenKind, id uuid.UUID) (*PrincipalResponse, error) {
	switch kind {
	case auth.KindCustomer:
		c, err := s.customers.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.Blocked {
			return nil, ErrAccountBlocked
		}
		p := customerPrincipal(c)
		return &p, nil
	case auth.KindAdmin:
		a, err := s.admins.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !a.Active {
			return nil, ErrAccountInactive
		}
		p := adminPrincipal(a)
		return &p, nil
	}
	return nil, shared.NewDomainError("UNAUTHORIZED", "Unknown token kind")
}

// Logout revokes the presented token until it would have expired
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.blacklist == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.RemainingTTL()
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.Revoke(ctx, claims.ID, ttl); err != nil {
		return err
	}
	s.logger.Info("token revoked", zap.String("subject", claims.Subject), zap.String("kind", string(claims.Kind)))
	return nil
}

// SeedAdmin creates an admin or resets the password, name and active flag of
// an existing one. created reports which of the two happened.
func (s *AuthService) SeedAdmin(ctx context.Context, email, name, password string) (admin *identity.AdminUser, created bool, err error) {
	admin, err = s.admins.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case errors.Is(err, shared.ErrNotFound):
		admin, err = identity.NewAdminUser(email, name, password)
		if err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, err
	default:
		if err := admin.SetPassword(password); err != nil {
			return nil, false, err
		}
		if n := strings.TrimSpace(name); n != "" {
			admin.Name = n
		}
		admin.Active = true
		admin.IncrementVersion()
	}

	if err := s.admins.Save(ctx, admin); err != nil {
		return nil, false, err
	}
	if !created {
		if err := s.revokeSessions(ctx, admin.ID); err != nil {
			return nil, false, fmt.Errorf("password reset but old sessions are still valid: %w", err)
		}
	}
	s.logger.Info("admin seeded", zap.String("email", admin.Email), zap.Bool("created", created))
	return admin, created, nil
}

// revokeSessions invalidates every admin token issued to id so far
func (s *AuthService) revokeSessions(ctx context.Context, id uuid.UUID) error {
	if s.blacklist == nil {
		s.logger.Warn("no token blacklist, existing admin sessions stay valid", zap.String("admin_id", id.String()))
		return nil
	}
	if err := s.blacklist.RevokeSubject(ctx, id.String(), s.jwtService.AdminTokenTTL()); err != nil {
		return err
	}
	s.logger.Info("admin sessions revoked", zap.String("admin_id", id.String()))
	return nil
}
