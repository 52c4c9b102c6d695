package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	appidentity "github.com/flora/backend/internal/application/identity"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/auth"
	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/flora/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys set by DualAuth
const (
	ClaimsKey    = "auth_claims"
	PrincipalKey = "auth_principal"
)

const bearerPrefix = "Bearer "

// PrincipalLoader resolves the account behind verified claims
type PrincipalLoader interface {
	Principal(ctx context.Context, kind auth.TokenKind, id uuid.UUID) (*appidentity.PrincipalResponse, error)
}

// AuthConfig wires DualAuth
type AuthConfig struct {
	Customer   auth.Verifier
	Admin      auth.Verifier
	Blacklist  auth.TokenBlacklist // optional
	Principals PrincipalLoader
	Logger     *zap.Logger
}

// DualAuth accepts a bearer token of either family. The customer verifier is
// tried first, then the admin one. Revoked tokens, blocked customers and
// deactivated admins get a 401 with a bilingual message.
func DualAuth(cfg AuthConfig) gin.HandlerFunc {
	return authenticate(cfg, true)
}

// OptionalDualAuth authenticates when a token is present and lets anonymous
// requests through. An invalid token is still rejected.
func OptionalDualAuth(cfg AuthConfig) gin.HandlerFunc {
	return authenticate(cfg, false)
}

func authenticate(cfg AuthConfig, required bool) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				abortUnauthorized(c, MsgAuthRequired)
				return
			}
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || strings.TrimSpace(raw) == "" {
			abortUnauthorized(c, MsgAuthRequired)
			return
		}

		claims, err := verify(cfg, strings.TrimSpace(raw))
		if err != nil {
			log.Debug("token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, MsgTokenExpired)
			} else {
				abortUnauthorized(c, MsgTokenInvalid)
			}
			return
		}

		ctx := c.Request.Context()
		if revoked(ctx, cfg.Blacklist, claims, log) {
			abortUnauthorized(c, MsgTokenRevoked)
			return
		}

		principal, err := cfg.Principals.Principal(ctx, claims.Kind, claims.UserID())
		if err != nil {
			var de *shared.DomainError
			switch {
			case errors.Is(err, appidentity.ErrAccountBlocked):
				abortUnauthorized(c, MsgAccountBlocked)
			case errors.As(err, &de):
				abortUnauthorized(c, MsgAccountGone)
			default:
				log.Error("failed to load principal", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
					dto.ErrCodeInternal, "An unexpected error occurred", GetRequestID(c)))
			}
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(PrincipalKey, principal)
		c.Request = c.Request.WithContext(logger.WithOperator(ctx, logger.Operator{
			ID:   principal.ID.String(),
			Kind: principal.Kind,
		}))
		c.Next()
	}
}

// verify tries the customer family first, then the admin family. An expired
// token of either family is reported as expired.
func verify(cfg AuthConfig, raw string) (*auth.Claims, error) {
	var errs []error
	for _, v := range []auth.Verifier{cfg.Customer, cfg.Admin} {
		if v == nil {
			continue
		}
		claims, err := v.Verify(raw)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, auth.ErrInvalidToken
	}
	for _, err := range errs {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, auth.ErrExpiredToken
		}
	}
	return nil, errors.Join(errs...)
}

// revoked fails open when the blacklist cannot be reached
func revoked(ctx context.Context, bl auth.TokenBlacklist, claims *auth.Claims, log *zap.Logger) bool {
	if bl == nil {
		return false
	}
	if claims.ID != "" {
		yes, err := bl.IsRevoked(ctx, claims.ID)
		if err != nil {
			log.Error("failed to check token blacklist", zap.Error(err))
		} else if yes {
			return true
		}
	}
	yes, err := bl.IsSubjectRevoked(ctx, claims.Subject, claims.IssuedAtTime())
	if err != nil {
		log.Error("failed to check subject revocation", zap.Error(err))
		return false
	}
	return yes
}

func abortUnauthorized(c *gin.Context, msg Message) {
	c.Header("WWW-Authenticate", `Bearer realm="flora"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
		dto.ErrCodeUnauthorized, msg.Localize(c.GetHeader("Accept-Language")), GetRequestID(c)))
}

// RequireAdmin lets only admin principals through. It must run after DualAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			abortUnauthorized(c, MsgAuthRequired)
			return
		}
		if p.Kind != appidentity.KindAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(
				dto.ErrCodeForbidden, MsgAdminOnly.Localize(c.GetHeader("Accept-Language")), GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// GetClaims returns the verified token claims, nil for anonymous requests
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetPrincipal returns the authenticated account, nil for anonymous requests
func GetPrincipal(c *gin.Context) *appidentity.PrincipalResponse {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(*appidentity.PrincipalResponse); ok {
			return p
		}
	}
	return nil
}

// IsAdmin reports whether the request is made by an admin
func IsAdmin(c *gin.Context) bool {
	p := GetPrincipal(c)
	return p != nil && p.Kind == appidentity.KindAdmin
}

// GetOperator returns the principal as a POS operator
func GetOperator(c *gin.Context) (pos.Operator, bool) {
	p := GetPrincipal(c)
	if p == nil {
		return pos.Operator{}, false
	}
	kind := pos.OperatorCustomer
	if p.Kind == appidentity.KindAdmin {
		kind = pos.OperatorAdmin
	}
	return pos.Operator{ID: p.ID, Kind: kind}, true
}
