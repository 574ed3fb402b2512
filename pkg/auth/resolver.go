package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/transer/vortice/pkg/storage"
	"github.com/transer/vortice/pkg/token"
)

// Resolver maps an Authorization header to a Principal.
type Resolver struct {
	codec *token.Codec
	store IdentityStore
}

// NewResolver creates a resolver from a token codec and identity store.
func NewResolver(codec *token.Codec, store IdentityStore) *Resolver {
	return &Resolver{codec: codec, store: store}
}

// Resolve turns a raw Authorization header value into a principal.
//
// Outcomes:
//   - (nil, nil): no bearer credentials present. The request continues as
//     anonymous and is rejected later only where authentication is required.
//   - (nil, ErrInvalidToken): a bearer token was presented but failed
//     verification, or a refresh token was used in place of an access token.
//   - (nil, ErrAccountUnavailable): the token verified but the account is
//     gone, inactive, or locked.
//   - (p, nil): authenticated.
//
// The identity store lookup is bounded by ctx.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*Principal, error) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return nil, nil
	}

	claims, err := r.codec.Verify(raw)
	if err != nil {
		var terr *token.Error
		if errors.As(err, &terr) {
			slog.Debug("token verification failed", "reason", terr.Kind.String())
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	// Refresh tokens cannot be used as access tokens.
	if claims.IsRefresh() {
		return nil, fmt.Errorf("%w: refresh token used as access token", ErrInvalidToken)
	}

	p, err := r.store.FindBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAccountUnavailable
		}
		return nil, fmt.Errorf("looking up subject: %w", err)
	}
	if !p.Active || p.Locked {
		return nil, ErrAccountUnavailable
	}

	return p, nil
}

// bearerToken extracts the token from a "Bearer <token>" header value.
// A missing or differently-schemed header is unauthenticated, not an error.
func bearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}
	raw := strings.TrimPrefix(authorization, prefix)
	if raw == "" {
		return "", false
	}
	return raw, true
}
