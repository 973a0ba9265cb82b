// Package app ties the storefront services together.
package app

import (
	"time"

	"github.com/pixelmart/storefront/internal/app/services/accounts"
	"github.com/pixelmart/storefront/internal/app/services/catalog"
	"github.com/pixelmart/storefront/internal/app/storage"
	"github.com/pixelmart/storefront/internal/app/storage/memory"
	"github.com/pixelmart/storefront/internal/auth"
	"github.com/pixelmart/storefront/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Accounts storage.AccountStore
	Products storage.ProductStore
}

// Options tunes the account lockout policy.
type Options struct {
	LockoutThreshold int
	LockoutWindow    time.Duration
}

// Application bundles the storefront services.
type Application struct {
	log *logger.Logger

	Accounts *accounts.Service
	Catalog  *catalog.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, issuer *auth.TokenIssuer, opts Options, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Products == nil {
		stores.Products = mem
	}

	return &Application{
		log:      log,
		Accounts: accounts.New(stores.Accounts, issuer, opts.LockoutThreshold, opts.LockoutWindow, log.WithField("service", "accounts")),
		Catalog:  catalog.New(stores.Products, log.WithField("service", "catalog")),
	}
}
