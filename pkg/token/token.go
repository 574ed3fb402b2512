// Package token issues and verifies the signed identity tokens used by the
// admission pipeline. Tokens are HMAC-SHA256 signed JWTs carrying the
// subject, a comma-joined role list, and issue/expiry timestamps. The codec
// holds no state beyond the signing secret and is safe for concurrent use.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TypeRefresh is the value of the "type" claim that marks refresh tokens.
// Access tokens carry no "type" claim.
const TypeRefresh = "refresh"

// Claims is the payload of a vortice identity token.
type Claims struct {
	// Roles is the comma-joined role list (e.g. "ADMIN_OFFICE,WAREHOUSE_MANAGER").
	Roles string `json:"roles,omitempty"`

	// Type distinguishes refresh tokens from access tokens.
	Type string `json:"type,omitempty"`

	jwtlib.RegisteredClaims
}

// RoleList splits the comma-joined roles claim into a slice.
// Returns nil for an empty claim.
func (c *Claims) RoleList() []string {
	if c.Roles == "" {
		return nil
	}
	return strings.Split(c.Roles, ",")
}

// IsRefresh reports whether the token is a refresh token. Refresh tokens
// must never be accepted where an access token is required.
func (c *Claims) IsRefresh() bool {
	return c.Type == TypeRefresh
}

// Config holds the codec settings.
type Config struct {
	// Secret is the HMAC signing key. Required, minimum 32 bytes.
	Secret string

	// AccessTTL is the access token lifetime. Default: 15 minutes.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime. Default: 7 days.
	RefreshTTL time.Duration
}

// Codec issues and verifies signed identity tokens. It is a pure function
// of its key and clock; there is no mutable state.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// New creates a Codec. A missing or short secret is a configuration error
// and aborts startup; it is never surfaced per-request.
func New(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(cfg.Secret))
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Codec{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the codec's clock. Intended for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// IssueAccessToken creates a signed access token for the subject with the
// given roles.
func (c *Codec) IssueAccessToken(subject string, roles []string) (string, error) {
	now := c.now()
	claims := Claims{
		Roles: strings.Join(roles, ","),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return c.sign(claims)
}

// IssueRefreshToken creates a signed refresh token for the subject.
// Refresh tokens carry no roles; the role set is re-resolved on refresh.
func (c *Codec) IssueRefreshToken(subject string) (string, error) {
	now := c.now()
	claims := Claims{
		Type: TypeRefresh,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return c.sign(claims)
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

func (c *Codec) sign(claims Claims) (string, error) {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, structure, and expiry of a token string and
// returns its claims. Failures are reported as *Error with a Kind suitable
// for logging; the message never contains key material.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwtlib.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid {
		return nil, &Error{Kind: Malformed, cause: errors.New("token is not valid")}
	}
	if claims.Subject == "" {
		return nil, &Error{Kind: Malformed, cause: errors.New("token missing subject")}
	}
	return claims, nil
}

// classify maps jwt library errors onto the codec's error kinds.
func classify(err error) *Error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return &Error{Kind: Expired, cause: err}
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return &Error{Kind: BadSignature, cause: err}
	case errors.Is(err, jwtlib.ErrTokenMalformed):
		return &Error{Kind: Malformed, cause: err}
	default:
		return &Error{Kind: Unsupported, cause: err}
	}
}
