// Package auth turns bearer tokens into request principals.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	// TokenAccess authorizes API requests.
	TokenAccess TokenType = "access"
	// TokenRefresh mints new pairs without re-authentication.
	TokenRefresh TokenType = "refresh"
)

// Claims is the signed payload carried by every shield token.
type Claims struct {
	UserID        int64  `json:"uid"`
	TenantID      int64  `json:"tid,omitempty"`
	RoleCode      string `json:"role"`
	TokenType     string `json:"typ"`
	PrincipalType string `json:"pt"`
	// TokenVersion is present on root tokens only; it is compared against the
	// live account record to support mass invalidation.
	TokenVersion *int64 `json:"tv,omitempty"`
	jwt.RegisteredClaims
}

// CodecConfig carries signing parameters.
type CodecConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec signs and verifies HS256 tokens.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec constructs a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: token secret required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	return &Codec{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// Issue signs a token of the given type for the principal. Root principals
// carry their token version; tenant principals carry their tenant id.
func (c *Codec) Issue(p shared.Principal, typ TokenType) (string, error) {
	ttl := c.accessTTL
	if typ == TokenRefresh {
		ttl = c.refreshTTL
	}
	now := c.now().UTC()
	claims := Claims{
		UserID:        p.UserID,
		TenantID:      p.TenantID,
		RoleCode:      p.RoleCode,
		TokenType:     string(typ),
		PrincipalType: string(p.Type),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Login,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if p.Type == shared.PrincipalRoot {
		tv := p.TokenVersion
		claims.TokenVersion = &tv
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry, returning the claims. Any failure
// maps to shared.ErrAuth so callers can treat all token problems uniformly.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %v: %w", err, shared.ErrAuth)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", shared.ErrAuth)
	}
	return claims, nil
}

// StripBearer removes an optional case-insensitive "Bearer " prefix.
func StripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "Bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

// Principal converts verified claims into a request principal.
func (cl *Claims) Principal() *shared.Principal {
	p := &shared.Principal{
		UserID:   cl.UserID,
		TenantID: cl.TenantID,
		Login:    cl.Subject,
		RoleCode: cl.RoleCode,
		Type:     shared.PrincipalType(strings.ToUpper(cl.PrincipalType)),
	}
	if p.Type == "" {
		p.Type = shared.PrincipalTenantUser
	}
	if cl.TokenVersion != nil {
		p.TokenVersion = *cl.TokenVersion
	}
	return p
}
