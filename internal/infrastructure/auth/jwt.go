package auth

import (
	"errors"
	"time"

	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two token families
type TokenKind string

const (
	KindCustomer TokenKind = "customer"
	KindAdmin    TokenKind = "admin"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenKind = errors.New("invalid token kind")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing subject in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"kind"`
	Name string    `json:"name,omitempty"`
}

// Token is an issued bearer token
type Token struct {
	AccessToken string    `json:"jwt"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"` // Bearer
}

// Verifier validates a raw token string of one family
type Verifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTService issues and validates customer and admin tokens. The two
// families are signed with different secrets so a token of one kind
// never validates as the other.
type JWTService struct {
	customer family
	admin    family
	issuer   string
	now      func() time.Time
}

type family struct {
	kind       TokenKind
	secret     []byte
	expiration time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		customer: family{kind: KindCustomer, secret: []byte(cfg.CustomerSecret), expiration: cfg.CustomerExpiration},
		admin:    family{kind: KindAdmin, secret: []byte(cfg.AdminSecret), expiration: cfg.AdminExpiration},
		issuer:   cfg.Issuer,
		now:      time.Now,
	}
}

// IssueCustomerToken signs a token for a storefront customer
func (s *JWTService) IssueCustomerToken(userID uuid.UUID, name string) (*Token, error) {
	return s.issue(s.customer, userID, name)
}

// IssueAdminToken signs a token for a back-office administrator
func (s *JWTService) IssueAdminToken(userID uuid.UUID, name string) (*Token, error) {
	return s.issue(s.admin, userID, name)
}

func (s *JWTService) issue(f family, userID uuid.UUID, name string) (*Token, error) {
	now := s.now()
	expiresAt := now.Add(f.expiration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{string(f.kind)},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Kind: f.kind,
		Name: name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, ExpiresAt: expiresAt, TokenType: "Bearer"}, nil
}

// AdminTokenTTL is how long an admin token stays valid after issue
func (s *JWTService) AdminTokenTTL() time.Duration {
	return s.admin.expiration
}

// CustomerVerifier returns the verifier for customer tokens
func (s *JWTService) CustomerVerifier() Verifier {
	return verifierFunc(func(raw string) (*Claims, error) { return s.validate(raw, s.customer) })
}

// AdminVerifier returns the verifier for admin tokens
func (s *JWTService) AdminVerifier() Verifier {
	return verifierFunc(func(raw string) (*Claims, error) { return s.validate(raw, s.admin) })
}

type verifierFunc func(string) (*Claims, error)

func (f verifierFunc) Verify(raw string) (*Claims, error) { return f(raw) }

func (s *JWTService) validate(tokenString string, f family) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return f.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(string(f.kind)),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Kind != f.kind {
		return nil, ErrInvalidTokenKind
	}
	if claims.Subject == "" {
		return nil, ErrMissingUserID
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// UserID parses the subject
func (c *Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// IssuedAtTime returns the token's issued-at time as time.Time
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// RemainingTTL returns the remaining time until the token expires
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(c.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}
