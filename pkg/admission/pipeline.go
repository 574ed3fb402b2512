package admission

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/observability"
	"github.com/transer/vortice/pkg/ratelimit"
	"github.com/transer/vortice/pkg/storage"
)

// DefaultPublicPrefixes lists path prefixes that skip the bind-tenant and
// authorize stages. They are still rate limited.
var DefaultPublicPrefixes = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/v1/auth/",
}

// Pipeline orchestrates the admission stages as HTTP middleware.
type Pipeline struct {
	limiter  *ratelimit.Store
	resolver *auth.Resolver
	public   []string
}

// New creates a pipeline. publicPrefixes defaults to DefaultPublicPrefixes
// when nil.
func New(limiter *ratelimit.Store, resolver *auth.Resolver, publicPrefixes []string) *Pipeline {
	if publicPrefixes == nil {
		publicPrefixes = DefaultPublicPrefixes
	}
	return &Pipeline{limiter: limiter, resolver: resolver, public: publicPrefixes}
}

// Middleware runs the admission stages in order ahead of next. The tenant
// binding lives in the request context, so it cannot survive the request;
// the deferred recovery additionally guarantees that a panicking handler
// ends as a clean 500 instead of leaking a half-processed request.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in request handler",
					"path", r.URL.Path,
					"panic", rec,
				)
				writeReject(w, r, http.StatusInternalServerError, "internal server error")
			}
		}()

		// Stage 1: rate limit. Runs for every endpoint, public or not.
		if !p.rateLimit(w, r) {
			return
		}

		public := p.isPublic(r.URL.Path)

		// Stage 2: authenticate. A missing credential is not yet a
		// rejection; protected endpoints reject it in stage 3.
		principal, ok := p.authenticate(w, r, public)
		if !ok {
			return
		}

		ctx := r.Context()
		if principal != nil {
			ctx = auth.SetPrincipal(ctx, principal)
		}

		// Public endpoints skip bind-tenant and authorize.
		if public {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if principal == nil {
			observability.AuthFailuresTotal.WithLabelValues("unauthenticated").Inc()
			writeReject(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		// Stage 3: bind tenant for storage scoping.
		ctx = storage.BindTenant(ctx, storage.Tenant{
			ID:          principal.TenantID,
			GlobalAdmin: auth.HasRole(principal, auth.RoleNationalAdmin),
		})

		// Stage 4: authorize. Route-level rules (RequireRole,
		// RequireTenantParam) run inside next; the pipeline itself only
		// guarantees an authenticated, tenant-bound principal here.
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit charges the request against its class bucket and writes the
// rate headers. Returns false when the request was rejected.
func (p *Pipeline) rateLimit(w http.ResponseWriter, r *http.Request) bool {
	if p.limiter == nil || !p.limiter.Enabled() {
		return true
	}

	class := ratelimit.ClassifyPath(r.URL.Path)
	clientID := ratelimit.ClientIP(r)
	res := p.limiter.TryConsume(ratelimit.Key{ClientID: clientID, Class: class})

	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	w.Header().Set("X-RateLimit-Type", class.String())

	if res.Allowed {
		return true
	}

	retryAfter := int64(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

	slog.Warn("rate limit exceeded",
		"client", clientID,
		"path", r.URL.Path,
		"class", class.String(),
		"retry_after_s", retryAfter,
	)
	observability.RateLimitRejectedTotal.WithLabelValues(class.String()).Inc()

	writeRejectBody(w, r, rejection{
		Status:            http.StatusTooManyRequests,
		Message:           "too many requests",
		RetryAfterSeconds: retryAfter,
		LimitType:         class.String(),
	})
	return false
}

// authenticate resolves the bearer token, if any. Returns ok=false when a
// rejection was written. On public endpoints a bad credential downgrades
// to anonymous so that a client retrying login with an expired token still
// attached is not locked out of re-authenticating.
func (p *Pipeline) authenticate(w http.ResponseWriter, r *http.Request, public bool) (*auth.Principal, bool) {
	principal, err := p.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
	if err == nil {
		return principal, true
	}

	var reason string
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		reason = "invalid_token"
	case errors.Is(err, auth.ErrAccountUnavailable):
		reason = "account_unavailable"
	default:
		// Identity store unreachable or similar. Fail closed with a
		// generic 500; never continue as anonymous.
		slog.Error("identity resolution failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeReject(w, r, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	if public {
		slog.Debug("ignoring stale credential on public endpoint",
			"path", r.URL.Path,
			"error", err,
		)
		return nil, true
	}

	slog.Warn("authentication failed",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error", err,
	)
	observability.AuthFailuresTotal.WithLabelValues(reason).Inc()
	writeReject(w, r, http.StatusUnauthorized, "authentication required")
	return nil, false
}

// isPublic reports whether the path skips the bind/authorize stages.
func (p *Pipeline) isPublic(path string) bool {
	for _, prefix := range p.public {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
