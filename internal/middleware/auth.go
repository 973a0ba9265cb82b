// Package middleware provides HTTP middleware for the storefront API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/storage"
	"github.com/pixelmart/storefront/internal/auth"
	"github.com/pixelmart/storefront/internal/errors"
	"github.com/pixelmart/storefront/internal/httputil"
	"github.com/pixelmart/storefront/pkg/logger"
)

type contextKey string

const accountContextKey contextKey = "account"

// AccountFromContext returns the authenticated account attached by the
// Authenticator, if any.
func AccountFromContext(ctx context.Context) (account.Account, bool) {
	acct, ok := ctx.Value(accountContextKey).(account.Account)
	return acct, ok
}

// Authenticator resolves bearer tokens to accounts. The token is an identity
// pointer only: role and active status always come from a fresh store read.
type Authenticator struct {
	issuer   *auth.TokenIssuer
	accounts storage.AccountStore
	log      *logger.Logger
}

// NewAuthenticator creates the authentication middleware.
func NewAuthenticator(issuer *auth.TokenIssuer, accounts storage.AccountStore, log *logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Authenticator{issuer: issuer, accounts: accounts, log: log}
}

// Require rejects requests without a valid, resolvable bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, err := a.authenticate(r)
		if err != nil {
			a.log.WithError(err).WithField("path", r.URL.Path).Debug("authentication rejected")
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
	})
}

// Optional attaches an identity when a valid token is presented and continues
// anonymously otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if acct, err := a.authenticate(r); err == nil {
			r = r.WithContext(withAccount(r.Context(), acct))
		}
		next.ServeHTTP(w, r)
	})
}

func withAccount(ctx context.Context, acct account.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, acct)
}

func (a *Authenticator) authenticate(r *http.Request) (account.Account, error) {
	token, err := extractBearer(r)
	if err != nil {
		return account.Account{}, err
	}

	claims, err := a.issuer.Verify(token)
	if err != nil {
		if err == auth.ErrTokenExpired {
			return account.Account{}, errors.Unauthorized(errors.CodeTokenExpired, "token expired")
		}
		return account.Account{}, errors.Unauthorized(errors.CodeInvalidToken, "invalid token")
	}

	acct, err := a.accounts.GetAccount(r.Context(), claims.Subject)
	if err != nil {
		return account.Account{}, errors.Unauthorized(errors.CodeAccountNotFound, "account not found")
	}
	if !acct.Active {
		return account.Account{}, errors.Unauthorized(errors.CodeAccountDeactivated, "account deactivated")
	}
	return acct, nil
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthorized(errors.CodeNoToken, "missing bearer token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.Unauthorized(errors.CodeNoToken, "missing bearer token")
	}
	return parts[1], nil
}

// RequireAdmin allows only admin accounts. It assumes identity resolution
// already ran.
func RequireAdmin(next http.Handler) http.Handler {
	return requireRole(next, errors.CodeAdminOnly, account.RoleAdmin)
}

// RequireEditor allows editor and admin accounts.
func RequireEditor(next http.Handler) http.Handler {
	return requireRole(next, errors.CodeEditorOnly, account.RoleEditor, account.RoleAdmin)
}

func requireRole(next http.Handler, code errors.Code, roles ...account.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := AccountFromContext(r.Context())
		if !ok {
			httputil.WriteError(w, errors.Unauthorized(errors.CodeUnauthenticated, "authentication required"))
			return
		}
		for _, role := range roles {
			if acct.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		httputil.WriteError(w, errors.Forbidden(code, "insufficient role"))
	})
}
