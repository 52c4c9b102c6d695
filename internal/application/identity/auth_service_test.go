package identity

import (
	"context"
	"testing"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/auth"
	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/flora/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityEnv struct {
	auth      *AuthService
	customers *CustomerService
	jwt       *auth.JWTService
	blacklist *auth.InMemoryTokenBlacklist
}

func newIdentityEnv(t *testing.T) *identityEnv {
	t.Helper()
	db, err := persistence.OpenSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	jwtService := auth.NewJWTService(config.JWTConfig{
		CustomerSecret:     "customer-secret-key-at-least-32-chars",
		AdminSecret:        "admin-secret-key-at-least-32-characters",
		CustomerExpiration: time.Hour,
		AdminExpiration:    time.Hour,
		Issuer:             "flora-test",
	})
	blacklist := auth.NewInMemoryTokenBlacklist()
	customerRepo := persistence.NewGormCustomerRepository(db)

	return &identityEnv{
		auth:      NewAuthService(customerRepo, persistence.NewGormAdminUserRepository(db), jwtService, blacklist, "KZ", nil),
		customers: NewCustomerService(customerRepo, "KZ", nil),
		jwt:       jwtService,
		blacklist: blacklist,
	}
}

func TestRegisterAndCustomerLogin(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, RegisterRequest{
		Name:     "Айгерим",
		Phone:    "8 701 234 56 78",
		Email:    "Aigerim@Example.com",
		Password: "rose2026",
	})
	require.NoError(t, err)
	assert.Equal(t, KindCustomer, reg.User.Kind)
	assert.Equal(t, "+77012345678", reg.User.Phone)
	assert.Equal(t, "aigerim@example.com", reg.User.Email)

	claims, err := env.jwt.CustomerVerifier().Verify(reg.JWT)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID())
	_, err = env.jwt.AdminVerifier().Verify(reg.JWT)
	assert.Error(t, err)

	byPhone, err := env.auth.CustomerLogin(ctx, LoginRequest{Identifier: "+7 (701) 234-56-78", Password: "rose2026"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, byPhone.User.ID)

	byEmail, err := env.auth.CustomerLogin(ctx, LoginRequest{Identifier: " AIGERIM@example.com", Password: "rose2026"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, byEmail.User.ID)

	_, err = env.auth.CustomerLogin(ctx, LoginRequest{Identifier: "aigerim@example.com", Password: "tulip2026"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.CustomerLogin(ctx, LoginRequest{Identifier: "nobody@example.com", Password: "rose2026"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.CustomerLogin(ctx, LoginRequest{Identifier: "not a phone", Password: "rose2026"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Register(ctx, RegisterRequest{Name: "Other", Phone: "+77012345678", Password: "peony2026"})
	assert.ErrorIs(t, err, ErrPhoneTaken)
	_, err = env.auth.Register(ctx, RegisterRequest{Name: "Other", Email: "aigerim@example.com", Password: "peony2026"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	stored, err := env.customers.Get(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
	assert.True(t, stored.CanLogin)
}

func TestRegister_Validation(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, RegisterRequest{Name: "A", Phone: "12345", Password: "rose2026"})
	assert.Equal(t, "INVALID_PHONE", codeOf(t, err))

	_, err = env.auth.Register(ctx, RegisterRequest{Name: "A", Phone: "+77012345678", Password: "short"})
	assert.Equal(t, "INVALID_PASSWORD", codeOf(t, err))

	_, err = env.auth.Register(ctx, RegisterRequest{Name: "A", Password: "rose2026"})
	assert.Equal(t, "INVALID_CONTACT", codeOf(t, err))
}

func TestRegister_ClaimsBackOfficeCustomer(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	created, err := env.customers.Create(ctx, CreateCustomerRequest{Name: "Ерлан", Phone: "87017654321", Notes: "wholesale"})
	require.NoError(t, err)
	assert.False(t, created.CanLogin)

	_, err = env.auth.CustomerLogin(ctx, LoginRequest{Identifier: "87017654321", Password: "rose2026"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	reg, err := env.auth.Register(ctx, RegisterRequest{Name: "Erlan", Phone: "+77017654321", Password: "rose2026"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, reg.User.ID)
	assert.Equal(t, "Ерлан", reg.User.Name)
}

func TestCustomerLogin_Blocked(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, RegisterRequest{Name: "Dana", Email: "dana@example.com", Password: "rose2026"})
	require.NoError(t, err)

	blocked := true
	_, err = env.customers.Update(ctx, reg.User.ID, UpdateCustomerRequest{Blocked: &blocked})
	require.NoError(t, err)

	_, err = env.auth.CustomerLogin(ctx, LoginRequest{Identifier: "dana@example.com", Password: "rose2026"})
	assert.ErrorIs(t, err, ErrAccountBlocked)

	_, err = env.auth.Principal(ctx, auth.KindCustomer, reg.User.ID)
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestSeedAdminAndAdminLogin(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	admin, created, err := env.auth.SeedAdmin(ctx, "Owner@Flora.kz", "Owner", "initial2026")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "owner@flora.kz", admin.Email)

	resp, err := env.auth.AdminLogin(ctx, AdminLoginRequest{Email: "owner@flora.kz", Password: "initial2026"})
	require.NoError(t, err)
	assert.Equal(t, KindAdmin, resp.User.Kind)
	claims, err := env.jwt.AdminVerifier().Verify(resp.JWT)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID())
	_, err = env.jwt.CustomerVerifier().Verify(resp.JWT)
	assert.Error(t, err)

	_, created, err = env.auth.SeedAdmin(ctx, "owner@flora.kz", "", "rotated2026")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = env.auth.AdminLogin(ctx, AdminLoginRequest{Email: "owner@flora.kz", Password: "initial2026"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.AdminLogin(ctx, AdminLoginRequest{Email: "owner@flora.kz", Password: "rotated2026"})
	require.NoError(t, err)

	principal, err := env.auth.Principal(ctx, auth.KindAdmin, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner", principal.Name)

	_, err = env.auth.Principal(ctx, auth.KindAdmin, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = env.auth.AdminLogin(ctx, AdminLoginRequest{Email: "ghost@flora.kz", Password: "rotated2026"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeedAdmin_ResetRevokesExistingSessions(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	admin, _, err := env.auth.SeedAdmin(ctx, "owner@flora.kz", "Owner", "initial2026")
	require.NoError(t, err)
	revoked, err := env.blacklist.IsSubjectRevoked(ctx, admin.ID.String(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked, "creating an admin revokes nothing")

	resp, err := env.auth.AdminLogin(ctx, AdminLoginRequest{Email: "owner@flora.kz", Password: "initial2026"})
	require.NoError(t, err)
	issued, err := env.jwt.AdminVerifier().Verify(resp.JWT)
	require.NoError(t, err)

	_, created, err := env.auth.SeedAdmin(ctx, "owner@flora.kz", "", "rotated2026")
	require.NoError(t, err)
	require.False(t, created)

	revoked, err = env.blacklist.IsSubjectRevoked(ctx, issued.Subject, issued.IssuedAtTime())
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = env.blacklist.IsSubjectRevoked(ctx, admin.ID.String(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked, "tokens issued after the reset stay valid")
}

func TestSeedAdmin_RejectsWeakPassword(t *testing.T) {
	env := newIdentityEnv(t)
	_, _, err := env.auth.SeedAdmin(context.Background(), "owner@flora.kz", "Owner", "password")
	assert.Equal(t, "INVALID_PASSWORD", codeOf(t, err))
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newIdentityEnv(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, RegisterRequest{Name: "Dana", Email: "dana@example.com", Password: "rose2026"})
	require.NoError(t, err)
	claims, err := env.jwt.CustomerVerifier().Verify(reg.JWT)
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, claims))
	revoked, err := env.blacklist.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, env.auth.Logout(ctx, nil))
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	domainErr, ok := err.(*shared.DomainError)
	require.True(t, ok, "expected a domain error, got %v", err)
	return domainErr.Code
}
