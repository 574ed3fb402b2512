// Package httpapi provides the HTTP handlers mounted behind the admission
// pipeline: the authentication endpoints (login, register, refresh) on the
// public bypass list, the current-user endpoint, and the tenant-scoped
// record listing used to observe isolation end to end.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/identity"
	"github.com/transer/vortice/pkg/observability"
	"github.com/transer/vortice/pkg/storage"
	"github.com/transer/vortice/pkg/token"
)

// Handler serves the gateway's JSON API.
type Handler struct {
	codec *token.Codec
	users identity.Store
}

// NewHandler creates a handler over the token codec and user store.
func NewHandler(codec *token.Codec, users identity.Store) *Handler {
	return &Handler{codec: codec, users: users}
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/login", h.login)
	mux.HandleFunc("POST /api/v1/auth/register", h.register)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.refresh)
	mux.HandleFunc("GET /api/v1/users/me", h.me)
}

// defaultRole is assigned to self-registered accounts. It carries no
// office and no admin capability until an administrator grants them.
const defaultRole = "USER"

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// validate returns a client-facing message for the first failed rule, or
// an empty string when the request is acceptable.
func (r registerRequest) validate() string {
	switch {
	case len(r.Username) < 3 || len(r.Username) > 50:
		return "username must be between 3 and 50 characters"
	case r.Email == "" || !strings.Contains(r.Email, "@"):
		return "a valid email is required"
	case len(r.Password) < 8:
		return "password must be at least 8 characters"
	}
	return ""
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         *user  `json:"user,omitempty"`
}

type user struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	OfficeID string   `json:"officeId,omitempty"`
	Roles    []string `json:"roles"`
}

func principalView(p *auth.Principal) *user {
	u := &user{ID: p.ID, Username: p.Username, Roles: p.Roles}
	if p.TenantID != uuid.Nil {
		u.OfficeID = p.TenantID.String()
	}
	return u
}

// login verifies a username/password pair and issues a token pair. The
// failure response is identical for unknown users, wrong passwords, and
// unavailable accounts.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	p, err := h.users.VerifyCredentials(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			slog.Warn("login failed", "subject", req.UsernameOrEmail, "remote_addr", r.RemoteAddr)
			observability.LoginFailuresTotal.Inc()
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("credential verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.issuePair(w, http.StatusOK, p, true)
}

// register creates an account with the default role and issues its first
// token pair. Taken usernames and emails report as a conflict.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.users.CreateUser(r.Context(), identity.Seed{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Roles:    []string{defaultRole},
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		slog.Error("registering user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("user registered", "username", p.Username)
	h.issuePair(w, http.StatusCreated, p, true)
}

// refresh exchanges a refresh token for a fresh pair. Access tokens are
// rejected here; the role set is re-resolved so revocations take effect on
// the next refresh.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	claims, err := h.codec.Verify(req.RefreshToken)
	if err != nil || !claims.IsRefresh() {
		observability.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	p, err := h.users.FindBySubject(r.Context(), claims.Subject)
	if err != nil || !p.Active || p.Locked {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	h.issuePair(w, http.StatusOK, p, false)
}

// me returns the resolved principal. The admission pipeline guarantees one
// is present on this route.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, principalView(p))
}

func (h *Handler) issuePair(w http.ResponseWriter, status int, p *auth.Principal, withUser bool) {
	access, err := h.codec.IssueAccessToken(p.Username, p.Roles)
	if err != nil {
		slog.Error("issuing access token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	refresh, err := h.codec.IssueRefreshToken(p.Username)
	if err != nil {
		slog.Error("issuing refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.codec.AccessTTL() / time.Second),
	}
	if withUser {
		resp.User = principalView(p)
	}
	writeJSON(w, status, resp)
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
