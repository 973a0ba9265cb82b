// Package memory provides an in-memory implementation of the storage
// interfaces.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/domain/product"
	"github.com/pixelmart/storefront/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu                 sync.RWMutex
	accounts           map[string]account.Account
	accountsByEmail    map[string]string
	accountsByUsername map[string]string
	accountsByPhone    map[string]string
	products           map[string]product.Product

	now func() time.Time
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:           make(map[string]account.Account),
		accountsByEmail:    make(map[string]string),
		accountsByUsername: make(map[string]string),
		accountsByPhone:    make(map[string]string),
		products:           make(map[string]product.Product),
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock. Tests use it to move time across the
// lockout window.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	} else if _, exists := s.accounts[acct.ID]; exists {
		return account.Account{}, fmt.Errorf("account %s already exists", acct.ID)
	}
	if _, exists := s.accountsByEmail[acct.Email]; exists {
		return account.Account{}, fmt.Errorf("email %s already registered", acct.Email)
	}
	if _, exists := s.accountsByUsername[acct.Username]; exists {
		return account.Account{}, fmt.Errorf("username %s already taken", acct.Username)
	}

	now := s.now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.accounts[acct.ID] = acct
	s.accountsByEmail[acct.Email] = acct.ID
	s.accountsByUsername[acct.Username] = acct.ID
	if acct.Phone != "" {
		s.accountsByPhone[acct.Phone] = acct.ID
	}
	return acct, nil
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.accounts[acct.ID]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}

	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = s.now()

	delete(s.accountsByEmail, original.Email)
	delete(s.accountsByUsername, original.Username)
	if original.Phone != "" {
		delete(s.accountsByPhone, original.Phone)
	}

	s.accounts[acct.ID] = acct
	s.accountsByEmail[acct.Email] = acct.ID
	s.accountsByUsername[acct.Username] = acct.ID
	if acct.Phone != "" {
		s.accountsByPhone[acct.Phone] = acct.ID
	}
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIndexLocked(s.accountsByEmail, email)
}

func (s *Store) GetAccountByUsername(_ context.Context, username string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIndexLocked(s.accountsByUsername, username)
}

func (s *Store) GetAccountByPhone(_ context.Context, phone string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIndexLocked(s.accountsByPhone, phone)
}

func (s *Store) byIndexLocked(index map[string]string, key string) (account.Account, error) {
	id, ok := index[key]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) GetAccountByResetToken(_ context.Context, tokenHash string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if acct.ResetTokenHash != "" && acct.ResetTokenHash == tokenHash {
			return acct, nil
		}
	}
	return account.Account{}, storage.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RecordLoginFailure(_ context.Context, id string, threshold int, lockWindow time.Duration) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}

	now := s.now()
	if acct.LockedUntil != nil && !now.Before(*acct.LockedUntil) {
		acct.FailedLogins = 0
		acct.LockedUntil = nil
	}
	acct.FailedLogins++
	if acct.FailedLogins >= threshold {
		until := now.Add(lockWindow)
		acct.LockedUntil = &until
	}
	acct.UpdatedAt = now

	s.accounts[id] = acct
	return acct, nil
}

func (s *Store) RecordLoginSuccess(_ context.Context, id string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}

	now := s.now()
	acct.FailedLogins = 0
	acct.LockedUntil = nil
	acct.LastLogin = &now
	acct.UpdatedAt = now

	s.accounts[id] = acct
	return acct, nil
}

// ProductStore implementation -------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, exists := s.products[p.ID]; exists {
		return product.Product{}, fmt.Errorf("product %s already exists", p.ID)
	}

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.products[p.ID]
	if !ok {
		return product.Product{}, storage.ErrNotFound
	}

	p.CreatedAt = original.CreatedAt
	p.CreatedBy = original.CreatedBy
	p.UpdatedAt = s.now()

	s.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, filter product.Filter) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if matchesFilter(p, filter) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matchesFilter(p product.Product, filter product.Filter) bool {
	if !filter.IncludeInactive && !p.Active {
		return false
	}
	if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}
