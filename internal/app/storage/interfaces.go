// Package storage declares the persistence interfaces for the storefront.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/domain/product"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AccountStore persists identity records.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (account.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (account.Account, error)
	GetAccountByResetToken(ctx context.Context, tokenHash string) (account.Account, error)
	ListAccounts(ctx context.Context) ([]account.Account, error)

	// RecordLoginFailure applies the lockout transition atomically: an expired
	// lock clears the counter, the counter increments, and reaching threshold
	// sets LockedUntil to now+lockWindow. Returns the updated account.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockWindow time.Duration) (account.Account, error)

	// RecordLoginSuccess resets the failure counter, clears any lock, and
	// stamps LastLogin.
	RecordLoginSuccess(ctx context.Context, id string) (account.Account, error)
}

// ProductStore persists catalog records.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
	ListProducts(ctx context.Context, filter product.Filter) ([]product.Product, error)
}
