package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixelmart/storefront/internal/app"
	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/storage/memory"
	"github.com/pixelmart/storefront/internal/auth"
	"github.com/pixelmart/storefront/internal/cache"
	"github.com/pixelmart/storefront/internal/middleware"
)

type testEnv struct {
	router http.Handler
	store  *memory.Store
	issuer *auth.TokenIssuer
	cache  *cache.ResponseCache
}

func newTestEnv(t *testing.T, invalidateOnWrite bool) *testEnv {
	t.Helper()

	store := memory.New()
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	stores := app.Stores{Accounts: store, Products: store}
	application := app.New(stores, issuer, app.Options{}, nil)

	responseCache := cache.New(time.Minute, 100)
	router := NewRouter(RouterConfig{
		App:               application,
		Auth:              middleware.NewAuthenticator(issuer, store, nil),
		Cache:             responseCache,
		GeneralLimiter:    middleware.NewRateLimiter("general", 1000, time.Minute, nil),
		AuthLimiter:       middleware.NewRateLimiter("auth", 1000, time.Minute, nil),
		CORS:              middleware.NewCORSMiddleware([]string{"https://shop.example.com"}),
		Production:        false,
		InvalidateOnWrite: invalidateOnWrite,
		Version:           "test",
	})

	return &testEnv{router: router, store: store, issuer: issuer, cache: responseCache}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:54321"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedToken(t *testing.T, role account.Role) string {
	t.Helper()
	hash, err := auth.HashPassword("Abcd1234")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	acct, err := e.store.CreateAccount(context.Background(), account.Account{
		Username:     string(role) + "user",
		Email:        string(role) + "@b.com",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	token, err := e.issuer.Issue(acct)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in %q", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestRegisterFlow(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gamer1",
		"email":    "a@b.com",
		"password": "Abcd1234",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	user := body["user"].(map[string]interface{})
	if user["role"] != "customer" {
		t.Fatalf("role = %v, want customer", user["role"])
	}

	// A second registration with the same email fails.
	dup := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gamer2",
		"email":    "a@b.com",
		"password": "Abcd1234",
	})
	if dup.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want 400", dup.Code)
	}
	if got := errorCode(t, dup); got != "DUPLICATE_EMAIL" {
		t.Fatalf("code = %q, want DUPLICATE_EMAIL", got)
	}
}

func TestRegisterIgnoresRoleField(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "sneaky",
		"email":    "sneaky@b.com",
		"password": "Abcd1234",
		"role":     "admin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	user := decodeBody(t, rec)["user"].(map[string]interface{})
	if user["role"] != "customer" {
		t.Fatalf("role = %v, smuggled role must be ignored", user["role"])
	}
}

func TestNoCredentialFieldsInResponses(t *testing.T) {
	env := newTestEnv(t, false)

	register := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gamer1",
		"email":    "a@b.com",
		"password": "Abcd1234",
	})
	login := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@b.com",
		"password": "Abcd1234",
	})

	adminToken := env.seedToken(t, account.RoleAdmin)
	users := env.do(t, http.MethodGet, "/api/auth/users", adminToken, nil)

	for name, rec := range map[string]*httptest.ResponseRecorder{
		"register": register, "login": login, "users": users,
	} {
		if rec.Code >= 300 {
			t.Fatalf("%s status = %d: %s", name, rec.Code, rec.Body.String())
		}
		lower := strings.ToLower(rec.Body.String())
		for _, leak := range []string{"password", "hash", "reset_token"} {
			if strings.Contains(lower, leak) {
				t.Fatalf("%s response leaks %q: %s", name, leak, rec.Body.String())
			}
		}
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gamer1",
		"email":    "a@b.com",
		"password": "Abcd1234",
	})

	login := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@b.com",
		"password": "Abcd1234",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", login.Code, login.Body.String())
	}
	token := decodeBody(t, login)["token"].(string)

	me := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", me.Code, me.Body.String())
	}
	user := decodeBody(t, me)["user"].(map[string]interface{})
	if user["email"] != "a@b.com" {
		t.Fatalf("email = %v", user["email"])
	}

	anon := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous me status = %d, want 401", anon.Code)
	}
	if got := errorCode(t, anon); got != "NO_TOKEN" {
		t.Fatalf("code = %q, want NO_TOKEN", got)
	}
}

func TestLoginOTPEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	bad := env.do(t, http.MethodPost, "/api/auth/login/otp", "", map[string]string{
		"phone": "5551234567",
		"otp":   "999999",
	})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad otp status = %d, want 401", bad.Code)
	}

	good := env.do(t, http.MethodPost, "/api/auth/login/otp", "", map[string]string{
		"phone": "5551234567",
		"otp":   "123456",
	})
	if good.Code != http.StatusOK {
		t.Fatalf("otp status = %d: %s", good.Code, good.Body.String())
	}
	if decodeBody(t, good)["token"] == "" {
		t.Fatal("expected a token")
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv(t, false)
	customerToken := env.seedToken(t, account.RoleCustomer)
	editorToken := env.seedToken(t, account.RoleEditor)
	adminToken := env.seedToken(t, account.RoleAdmin)

	for _, tc := range []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"customer", customerToken, http.StatusForbidden},
		{"editor", editorToken, http.StatusForbidden},
		{"admin", adminToken, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/auth/users", tc.token, nil)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t, false)
	adminToken := env.seedToken(t, account.RoleAdmin)

	reg := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gamer1",
		"email":    "a@b.com",
		"password": "Abcd1234",
	})
	id := decodeBody(t, reg)["user"].(map[string]interface{})["id"].(string)

	role := env.do(t, http.MethodPut, "/api/auth/users/"+id+"/role", adminToken, map[string]string{"role": "editor"})
	if role.Code != http.StatusOK {
		t.Fatalf("role status = %d: %s", role.Code, role.Body.String())
	}
	if got := decodeBody(t, role)["user"].(map[string]interface{})["role"]; got != "editor" {
		t.Fatalf("role = %v, want editor", got)
	}

	deact := env.do(t, http.MethodPut, "/api/auth/users/"+id+"/deactivate", adminToken, nil)
	if deact.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d: %s", deact.Code, deact.Body.String())
	}

	login := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@b.com",
		"password": "Abcd1234",
	})
	if login.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated login status = %d, want 401", login.Code)
	}
	if got := errorCode(t, login); got != "ACCOUNT_DEACTIVATED" {
		t.Fatalf("code = %q, want ACCOUNT_DEACTIVATED", got)
	}

	react := env.do(t, http.MethodPut, "/api/auth/users/"+id+"/activate", adminToken, nil)
	if react.Code != http.StatusOK {
		t.Fatalf("activate status = %d: %s", react.Code, react.Body.String())
	}
}

func TestProductCRUDAndRoles(t *testing.T) {
	env := newTestEnv(t, false)
	customerToken := env.seedToken(t, account.RoleCustomer)
	editorToken := env.seedToken(t, account.RoleEditor)

	payload := map[string]interface{}{
		"name":        "Widget",
		"price_cents": 1999,
		"category":    "gadgets",
		"stock":       10,
	}

	if rec := env.do(t, http.MethodPost, "/api/products", "", payload); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/products", customerToken, payload); rec.Code != http.StatusForbidden {
		t.Fatalf("customer create status = %d, want 403", rec.Code)
	}

	created := env.do(t, http.MethodPost, "/api/products", editorToken, payload)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", created.Code, created.Body.String())
	}
	p := decodeBody(t, created)["product"].(map[string]interface{})
	id := p["id"].(string)
	if p["created_by"] == "" {
		t.Fatal("expected created_by from the caller identity")
	}

	updated := env.do(t, http.MethodPut, "/api/products/"+id, editorToken, map[string]interface{}{
		"price_cents": 2999,
	})
	if updated.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", updated.Code, updated.Body.String())
	}
	if got := decodeBody(t, updated)["product"].(map[string]interface{})["price_cents"]; got != float64(2999) {
		t.Fatalf("price_cents = %v, want 2999", got)
	}

	deleted := env.do(t, http.MethodDelete, "/api/products/"+id, editorToken, nil)
	if deleted.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", deleted.Code, deleted.Body.String())
	}

	// Soft-deleted products vanish from the public surface.
	if rec := env.do(t, http.MethodGet, "/api/products/"+id, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestProductListCaching(t *testing.T) {
	env := newTestEnv(t, false)
	editorToken := env.seedToken(t, account.RoleEditor)

	env.do(t, http.MethodPost, "/api/products", editorToken, map[string]interface{}{
		"name":        "Widget",
		"price_cents": 1999,
	})

	first := env.do(t, http.MethodGet, "/api/products", "", nil)
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("X-Cache = %q, want MISS", got)
	}

	second := env.do(t, http.MethodGet, "/api/products", "", nil)
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("X-Cache = %q, want HIT", got)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatal("cached payload should be byte-identical")
	}

	// Without invalidate-on-write a new product is invisible until the
	// cache is cleared.
	env.do(t, http.MethodPost, "/api/products", editorToken, map[string]interface{}{
		"name":        "Sprocket",
		"price_cents": 999,
	})
	stale := env.do(t, http.MethodGet, "/api/products", "", nil)
	if stale.Body.String() != first.Body.String() {
		t.Fatal("expected stale listing while the entry is fresh")
	}

	if rec := env.do(t, http.MethodPost, "/api/cache/clear", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("cache clear status = %d", rec.Code)
	}
	fresh := env.do(t, http.MethodGet, "/api/products", "", nil)
	if fresh.Body.String() == first.Body.String() {
		t.Fatal("expected fresh listing after clear")
	}
}

func TestProductCacheInvalidateOnWrite(t *testing.T) {
	env := newTestEnv(t, true)
	editorToken := env.seedToken(t, account.RoleEditor)

	env.do(t, http.MethodGet, "/api/products", "", nil)
	env.do(t, http.MethodPost, "/api/products", editorToken, map[string]interface{}{
		"name":        "Widget",
		"price_cents": 1999,
	})

	rec := env.do(t, http.MethodGet, "/api/products", "", nil)
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("X-Cache = %q, want MISS after invalidating write", got)
	}
	if !strings.Contains(rec.Body.String(), "Widget") {
		t.Fatal("expected the new product in the listing")
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	env.do(t, http.MethodGet, "/api/products", "", nil)
	env.do(t, http.MethodGet, "/api/products", "", nil)

	rec := env.do(t, http.MethodGet, "/api/cache/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := decodeBody(t, rec)
	if stats["hits"] != float64(1) || stats["misses"] != float64(1) {
		t.Fatalf("stats = %v, want 1 hit and 1 miss", stats)
	}
}

func TestAuthRateLimitBudget(t *testing.T) {
	store := memory.New()
	issuer, _ := auth.NewTokenIssuer("test-secret", time.Hour)
	application := app.New(app.Stores{Accounts: store, Products: store}, issuer, app.Options{}, nil)

	router := NewRouter(RouterConfig{
		App:            application,
		Auth:           middleware.NewAuthenticator(issuer, store, nil),
		Cache:          cache.New(time.Minute, 100),
		GeneralLimiter: middleware.NewRateLimiter("general", 1000, time.Minute, nil),
		AuthLimiter:    middleware.NewRateLimiter("auth", 2, time.Minute, nil),
		CORS:           middleware.NewCORSMiddleware(nil),
		Version:        "test",
	})

	env := &testEnv{router: router, store: store, issuer: issuer}
	body := map[string]string{"email": "a@b.com", "password": "Wrong1234"}

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/auth/login", "", body); rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rejected early", i+1)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := errorCode(t, rec); got != "RATE_LIMITED" {
		t.Fatalf("code = %q, want RATE_LIMITED", got)
	}

	// The product surface still answers on the general budget.
	if rec := env.do(t, http.MethodGet, "/api/products", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("products status = %d, want 200", rec.Code)
	}
}

func TestCORSOnAPISurface(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for disallowed origin", rec.Code)
	}

	pre := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	pre.RemoteAddr = "10.0.0.1:54321"
	pre.Header.Set("Origin", "https://shop.example.com")
	preRec := httptest.NewRecorder()
	env.router.ServeHTTP(preRec, pre)

	if preRec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", preRec.Code)
	}
}

func TestForgotAndResetEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gamer1",
		"email":    "a@b.com",
		"password": "Abcd1234",
	})

	known := env.do(t, http.MethodPost, "/api/auth/password/forgot", "", map[string]string{"email": "a@b.com"})
	unknown := env.do(t, http.MethodPost, "/api/auth/password/forgot", "", map[string]string{"email": "nobody@b.com"})

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d / %d, want 200 / 200", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatal("forgot responses must not reveal account existence")
	}

	bad := env.do(t, http.MethodPost, "/api/auth/password/reset", "", map[string]string{
		"token":    "bogus",
		"password": "Newpass12",
	})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("bad token status = %d, want 400", bad.Code)
	}
}

func TestListProductsFilterPassthrough(t *testing.T) {
	env := newTestEnv(t, false)
	editorToken := env.seedToken(t, account.RoleEditor)

	for i, cat := range []string{"gadgets", "parts"} {
		env.do(t, http.MethodPost, "/api/products", editorToken, map[string]interface{}{
			"name":        fmt.Sprintf("Item %d", i),
			"price_cents": 1000,
			"category":    cat,
		})
	}

	rec := env.do(t, http.MethodGet, "/api/products?category=gadgets", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	products := decodeBody(t, rec)["products"].([]interface{})
	if len(products) != 1 {
		t.Fatalf("len = %d, want 1", len(products))
	}
}
