// Package httpapi exposes the storefront REST API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pixelmart/storefront/internal/app"
	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/domain/product"
	"github.com/pixelmart/storefront/internal/cache"
	"github.com/pixelmart/storefront/internal/errors"
	"github.com/pixelmart/storefront/internal/httputil"
	"github.com/pixelmart/storefront/internal/metrics"
	"github.com/pixelmart/storefront/internal/middleware"
	"github.com/pixelmart/storefront/pkg/logger"
)

// productsPrefix is the key prefix purged by invalidate-on-write mode.
const productsPrefix = "/api/products"

// RouterConfig carries the wiring for the API router.
type RouterConfig struct {
	App            *app.Application
	Auth           *middleware.Authenticator
	Cache          *cache.ResponseCache
	GeneralLimiter *middleware.RateLimiter
	AuthLimiter    *middleware.RateLimiter
	CORS           *middleware.CORSMiddleware
	Log            *logger.Logger
	Production     bool

	// InvalidateOnWrite purges product cache entries on mutations. Off by
	// default: readers may then see stale listings for up to the cache TTL,
	// which mirrors the storefront's historical behavior.
	InvalidateOnWrite bool
	Version           string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app               *app.Application
	cache             *cache.ResponseCache
	invalidateOnWrite bool
	version           string
}

// NewRouter builds the full middleware chain and route table.
func NewRouter(rc RouterConfig) http.Handler {
	log := rc.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app:               rc.App,
		cache:             rc.Cache,
		invalidateOnWrite: rc.InvalidateOnWrite,
		version:           rc.Version,
	}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(rc.GeneralLimiter.Handler)

	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/cache/stats", h.cacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache/clear", h.cacheClear).Methods(http.MethodPost)

	// Credential endpoints carry the stricter auth budget on top of the
	// general one.
	strict := rc.AuthLimiter.Handler
	api.Handle("/auth/register", strict(http.HandlerFunc(h.register))).Methods(http.MethodPost)
	api.Handle("/auth/login", strict(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	api.Handle("/auth/login/otp", strict(http.HandlerFunc(h.loginOTP))).Methods(http.MethodPost)
	api.Handle("/auth/password/forgot", strict(http.HandlerFunc(h.forgotPassword))).Methods(http.MethodPost)
	api.Handle("/auth/password/reset", strict(http.HandlerFunc(h.resetPassword))).Methods(http.MethodPost)

	api.Handle("/auth/me", rc.Auth.Require(http.HandlerFunc(h.me))).Methods(http.MethodGet)

	admin := func(fn http.HandlerFunc) http.Handler {
		return rc.Auth.Require(middleware.RequireAdmin(fn))
	}
	api.Handle("/auth/users", admin(h.listUsers)).Methods(http.MethodGet)
	api.Handle("/auth/users/{id}/role", admin(h.updateUserRole)).Methods(http.MethodPut)
	api.Handle("/auth/users/{id}/activate", admin(h.activateUser)).Methods(http.MethodPut)
	api.Handle("/auth/users/{id}/deactivate", admin(h.deactivateUser)).Methods(http.MethodPut)

	cached := cache.Middleware(rc.Cache)
	api.Handle("/products", cached(http.HandlerFunc(h.listProducts))).Methods(http.MethodGet)
	api.Handle("/products/{id}", cached(http.HandlerFunc(h.getProduct))).Methods(http.MethodGet)

	editor := func(fn http.HandlerFunc) http.Handler {
		return rc.Auth.Require(middleware.RequireEditor(fn))
	}
	api.Handle("/products", editor(h.createProduct)).Methods(http.MethodPost)
	api.Handle("/products/{id}", editor(h.updateProduct)).Methods(http.MethodPut)
	api.Handle("/products/{id}", editor(h.deleteProduct)).Methods(http.MethodDelete)

	// Recovery, CORS, and request logging wrap the router so preflights and
	// unmatched paths pass through them too.
	var chain http.Handler = r
	chain = middleware.LoggingMiddleware(log)(chain)
	chain = rc.CORS.Handler(chain)
	chain = middleware.RecoveryMiddleware(log, rc.Production)(chain)
	return chain
}

// --- Operational ------------------------------------------------------------

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "storefront",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *handler) cacheClear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cache cleared"})
}

// --- Auth -------------------------------------------------------------------

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	// A role field in the body is ignored: registration always yields a
	// customer account.
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	acct, err := h.app.Accounts.Register(r.Context(), toRegisterInput(payload.Username, payload.Email, payload.Password, payload.Phone))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{"user": acct})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	acct, token, err := h.app.Accounts.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": acct})
}

func (h *handler) loginOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	acct, token, err := h.app.Accounts.LoginOTP(r.Context(), payload.Phone, payload.OTP)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": acct})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	message, err := h.app.Accounts.ForgotPassword(r.Context(), payload.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	if err := h.app.Accounts.ResetPassword(r.Context(), payload.Token, payload.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.AccountFromContext(r.Context())
	acct, err := h.app.Accounts.Me(r.Context(), caller.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": acct})
}

// --- Admin ------------------------------------------------------------------

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	accts, err := h.app.Accounts.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": accts})
}

func (h *handler) updateUserRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	acct, err := h.app.Accounts.UpdateRole(r.Context(), mux.Vars(r)["id"], account.Role(payload.Role))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": acct})
}

func (h *handler) activateUser(w http.ResponseWriter, r *http.Request) {
	h.setUserActive(w, r, true)
}

func (h *handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setUserActive(w, r, false)
}

func (h *handler) setUserActive(w http.ResponseWriter, r *http.Request, active bool) {
	acct, err := h.app.Accounts.SetActive(r.Context(), mux.Vars(r)["id"], active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": acct})
}

// --- Catalog ----------------------------------------------------------------

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter := product.Filter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}
	products, err := h.app.Catalog.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Catalog.Get(r.Context(), mux.Vars(r)["id"], false)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"product": p})
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		PriceCents  int64  `json:"price_cents"`
		Category    string `json:"category"`
		Stock       int    `json:"stock"`
		ImageURL    string `json:"image_url"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := middleware.AccountFromContext(r.Context())
	p, err := h.app.Catalog.Create(r.Context(), product.Product{
		Name:        payload.Name,
		Description: payload.Description,
		PriceCents:  payload.PriceCents,
		Category:    payload.Category,
		Stock:       payload.Stock,
		ImageURL:    payload.ImageURL,
		CreatedBy:   caller.ID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.afterProductWrite()
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{"product": p})
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PriceCents  *int64  `json:"price_cents"`
		Category    *string `json:"category"`
		Stock       *int    `json:"stock"`
		ImageURL    *string `json:"image_url"`
		Active      *bool   `json:"active"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, errors.Validation("invalid request body"))
		return
	}

	p, err := h.app.Catalog.Update(r.Context(), mux.Vars(r)["id"], toUpdateInput(
		payload.Name, payload.Description, payload.PriceCents, payload.Category,
		payload.Stock, payload.ImageURL, payload.Active))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.afterProductWrite()
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"product": p})
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.afterProductWrite()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *handler) afterProductWrite() {
	if h.invalidateOnWrite {
		h.cache.InvalidatePrefix(productsPrefix)
	}
}
