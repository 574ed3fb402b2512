package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/transer/vortice/pkg/auth"
	"github.com/transer/vortice/pkg/identity"
	"github.com/transer/vortice/pkg/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newHandler(t *testing.T) (*Handler, *token.Codec) {
	t.Helper()
	codec, err := token.New(token.Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	users, err := identity.NewMemoryStore([]identity.Seed{
		{Username: "alice", Email: "alice@example.com", Password: "s3cret",
			OfficeID: uuid.NewString(), Roles: []string{"ADMIN_OFFICE"}},
		{Username: "mallory", Password: "pw", Locked: true},
	})
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return NewHandler(codec, users), codec
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	h, codec := newHandler(t)

	rec := postJSON(t, h.login, `{"usernameOrEmail":"alice","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("tokenType = %q, want Bearer", resp.TokenType)
	}
	if resp.ExpiresIn != int64((15 * 60)) {
		t.Errorf("expiresIn = %d, want 900", resp.ExpiresIn)
	}
	if resp.User == nil || resp.User.Username != "alice" {
		t.Errorf("user = %+v", resp.User)
	}

	claims, err := codec.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verifying issued access token: %v", err)
	}
	if claims.Subject != "alice" || claims.IsRefresh() {
		t.Errorf("claims = %+v", claims)
	}

	rclaims, err := codec.Verify(resp.RefreshToken)
	if err != nil {
		t.Fatalf("verifying issued refresh token: %v", err)
	}
	if !rclaims.IsRefresh() {
		t.Error("second token is not refresh-typed")
	}
}

func TestLogin_ByEmail(t *testing.T) {
	h, _ := newHandler(t)

	rec := postJSON(t, h.login, `{"usernameOrEmail":"ALICE@example.com","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLogin_Failures_Indistinguishable(t *testing.T) {
	h, _ := newHandler(t)

	bodies := map[string]string{
		"wrong password": `{"usernameOrEmail":"alice","password":"nope"}`,
		"unknown user":   `{"usernameOrEmail":"ghost","password":"nope"}`,
		"locked account": `{"usernameOrEmail":"mallory","password":"pw"}`,
	}
	var responses []string
	for name, body := range bodies {
		rec := postJSON(t, h.login, body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
		responses = append(responses, rec.Body.String())
	}
	for i := 1; i < len(responses); i++ {
		if responses[i] != responses[0] {
			t.Errorf("failure responses differ: %q vs %q", responses[0], responses[i])
		}
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	h, _ := newHandler(t)
	rec := postJSON(t, h.login, `{"usernameOrEmail": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegister_Success(t *testing.T) {
	h, codec := newHandler(t)

	rec := postJSON(t, h.register, `{"username":"newbie","email":"newbie@example.com","password":"longenough"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.User == nil || resp.User.Username != "newbie" {
		t.Fatalf("user = %+v", resp.User)
	}
	if len(resp.User.Roles) != 1 || resp.User.Roles[0] != "USER" {
		t.Errorf("roles = %v, want [USER]", resp.User.Roles)
	}
	if resp.User.OfficeID != "" {
		t.Errorf("officeId = %q, want none for self-registration", resp.User.OfficeID)
	}

	claims, err := codec.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verifying issued access token: %v", err)
	}
	if claims.Subject != "newbie" {
		t.Errorf("subject = %q, want newbie", claims.Subject)
	}

	// The new account can log in immediately.
	rec = postJSON(t, h.login, `{"usernameOrEmail":"newbie","password":"longenough"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("login after register: status = %d, want 200", rec.Code)
	}
}

func TestRegister_Conflicts(t *testing.T) {
	h, _ := newHandler(t)

	for name, body := range map[string]string{
		"taken username": `{"username":"alice","email":"fresh@example.com","password":"longenough"}`,
		"taken email":    `{"username":"fresh","email":"alice@example.com","password":"longenough"}`,
	} {
		rec := postJSON(t, h.register, body)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s: status = %d, want 409", name, rec.Code)
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	h, _ := newHandler(t)

	cases := map[string]string{
		"short username":   `{"username":"ab","email":"a@example.com","password":"longenough"}`,
		"missing email":    `{"username":"newbie","password":"longenough"}`,
		"email without at": `{"username":"newbie","email":"not-an-email","password":"longenough"}`,
		"short password":   `{"username":"newbie","email":"a@example.com","password":"short"}`,
		"malformed body":   `{"username": `,
	}
	for name, body := range cases {
		rec := postJSON(t, h.register, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestRefresh_RoundTrip(t *testing.T) {
	h, codec := newHandler(t)

	refresh, err := codec.IssueRefreshToken("alice")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	rec := postJSON(t, h.refresh, `{"refreshToken":"`+refresh+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.User != nil {
		t.Error("refresh response carries user, want none")
	}
	claims, err := codec.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("verifying refreshed access token: %v", err)
	}
	// Roles come from the store, not the old token.
	if got := claims.RoleList(); len(got) != 1 || got[0] != "ADMIN_OFFICE" {
		t.Errorf("roles = %v, want [ADMIN_OFFICE]", got)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	h, codec := newHandler(t)

	access, err := codec.IssueAccessToken("alice", nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	rec := postJSON(t, h.refresh, `{"refreshToken":"`+access+`"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRefresh_UnknownSubject(t *testing.T) {
	h, codec := newHandler(t)

	refresh, err := codec.IssueRefreshToken("deleted-user")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	rec := postJSON(t, h.refresh, `{"refreshToken":"`+refresh+`"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMe(t *testing.T) {
	h, _ := newHandler(t)
	office := uuid.New()

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req = req.WithContext(auth.SetPrincipal(req.Context(), &auth.Principal{
		ID: 7, Username: "alice", TenantID: office, Roles: []string{"ADMIN_OFFICE"}, Active: true,
	}))
	rec := httptest.NewRecorder()
	h.me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var u user
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if u.Username != "alice" || u.OfficeID != office.String() {
		t.Errorf("user = %+v", u)
	}
}

func TestMe_NoPrincipal(t *testing.T) {
	h, _ := newHandler(t)
	rec := httptest.NewRecorder()
	h.me(rec, httptest.NewRequest("GET", "/api/v1/users/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
