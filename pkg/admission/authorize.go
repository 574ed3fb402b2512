package admission

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/observability"
)

// RequireRole wraps a handler with an exact-role check against the
// resolved principal. Absence of the role is a 403; the message never says
// which role was missing.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		if !auth.HasRole(p, role) {
			forbid(w, r, p)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTenantParam wraps a handler that addresses one office through a
// path parameter (e.g. "officeID" in /api/v1/offices/{officeID}). The
// principal must hold access to that office: either its own tenant
// matches, or it is a national admin. An unparseable id fails closed.
func RequireTenantParam(param string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())

		target, err := uuid.Parse(r.PathValue(param))
		if err != nil || !auth.HasAccessToTenant(p, target) {
			forbid(w, r, p)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func forbid(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	username := ""
	if p != nil {
		username = p.Username
	}
	// The username is logged, never echoed to the client.
	slog.Warn("access denied", "path", r.URL.Path, "username", username)
	observability.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
	writeReject(w, r, http.StatusForbidden, "access denied")
}
