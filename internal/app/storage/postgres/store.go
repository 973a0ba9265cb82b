// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/domain/product"
	"github.com/pixelmart/storefront/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the storefront tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id                  TEXT PRIMARY KEY,
			username            TEXT NOT NULL UNIQUE,
			email               TEXT NOT NULL UNIQUE,
			phone               TEXT,
			password_hash       TEXT NOT NULL DEFAULT '',
			role                TEXT NOT NULL DEFAULT 'customer',
			active              BOOLEAN NOT NULL DEFAULT TRUE,
			last_login          TIMESTAMPTZ,
			failed_logins       INTEGER NOT NULL DEFAULT 0,
			locked_until        TIMESTAMPTZ,
			reset_token_hash    TEXT NOT NULL DEFAULT '',
			reset_token_expires TIMESTAMPTZ,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL DEFAULT 0,
			category    TEXT NOT NULL DEFAULT '',
			stock       INTEGER NOT NULL DEFAULT 0,
			image_url   TEXT NOT NULL DEFAULT '',
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			created_by  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

const accountColumns = `id, username, email, phone, password_hash, role, active,
	last_login, failed_logins, locked_until, reset_token_hash, reset_token_expires,
	created_at, updated_at`

// --- AccountStore -----------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, phone, password_hash, role, active,
			last_login, failed_logins, locked_until, reset_token_hash, reset_token_expires,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, acct.ID, acct.Username, acct.Email, nullString(acct.Phone), acct.PasswordHash,
		string(acct.Role), acct.Active, acct.LastLogin, acct.FailedLogins, acct.LockedUntil,
		acct.ResetTokenHash, acct.ResetTokenExpires, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "accounts_email_key") {
			return account.Account{}, fmt.Errorf("email %s already registered", acct.Email)
		}
		if strings.Contains(err.Error(), "accounts_username_key") {
			return account.Account{}, fmt.Errorf("username %s already taken", acct.Username)
		}
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	acct.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET username = $2, email = $3, phone = $4, password_hash = $5, role = $6,
			active = $7, last_login = $8, failed_logins = $9, locked_until = $10,
			reset_token_hash = $11, reset_token_expires = $12, updated_at = $13
		WHERE id = $1
	`, acct.ID, acct.Username, acct.Email, nullString(acct.Phone), acct.PasswordHash,
		string(acct.Role), acct.Active, acct.LastLogin, acct.FailedLogins, acct.LockedUntil,
		acct.ResetTokenHash, acct.ResetTokenExpires, acct.UpdatedAt)
	if err != nil {
		return account.Account{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return account.Account{}, storage.ErrNotFound
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (account.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
}

func (s *Store) GetAccountByPhone(ctx context.Context, phone string) (account.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE phone = $1`, phone))
}

func (s *Store) GetAccountByResetToken(ctx context.Context, tokenHash string) (account.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = $1 AND reset_token_hash <> ''`, tokenHash))
}

func (s *Store) ListAccounts(ctx context.Context) ([]account.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		acct, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (s *Store) RecordLoginFailure(ctx context.Context, id string, threshold int, lockWindow time.Duration) (account.Account, error) {
	// Single statement so concurrent failures cannot under-count: an expired
	// lock resets the counter, the increment and threshold check happen on the
	// row's current value.
	row := s.db.QueryRowContext(ctx, `
		WITH current AS (
			SELECT id,
				CASE WHEN locked_until IS NOT NULL AND locked_until <= NOW()
					THEN 0 ELSE failed_logins END AS base,
				CASE WHEN locked_until IS NOT NULL AND locked_until <= NOW()
					THEN NULL ELSE locked_until END AS lock_carry
			FROM accounts WHERE id = $1
			FOR UPDATE
		)
		UPDATE accounts a
		SET failed_logins = c.base + 1,
			locked_until = CASE WHEN c.base + 1 >= $2
				THEN NOW() + make_interval(secs => $3)
				ELSE c.lock_carry END,
			updated_at = NOW()
		FROM current c
		WHERE a.id = c.id
		RETURNING `+prefixedAccountColumns("a")+`
	`, id, threshold, lockWindow.Seconds())
	return s.scanAccount(row)
}

func (s *Store) RecordLoginSuccess(ctx context.Context, id string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET failed_logins = 0, locked_until = NULL, last_login = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns+`
	`, id)
	return s.scanAccount(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanAccount(row rowScanner) (account.Account, error) {
	var (
		acct  account.Account
		phone sql.NullString
		role  string
	)
	err := row.Scan(&acct.ID, &acct.Username, &acct.Email, &phone, &acct.PasswordHash,
		&role, &acct.Active, &acct.LastLogin, &acct.FailedLogins, &acct.LockedUntil,
		&acct.ResetTokenHash, &acct.ResetTokenExpires, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, storage.ErrNotFound
		}
		return account.Account{}, err
	}
	acct.Phone = phone.String
	acct.Role = account.Role(role)
	return acct, nil
}

func prefixedAccountColumns(alias string) string {
	cols := strings.Split(accountColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- ProductStore -----------------------------------------------------------

const productColumns = `id, name, description, price_cents, category, stock,
	image_url, active, created_by, created_at, updated_at`

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price_cents, category, stock,
			image_url, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Name, p.Description, p.PriceCents, p.Category, p.Stock,
		p.ImageURL, p.Active, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	p.UpdatedAt = time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, category = $5, stock = $6,
			image_url = $7, active = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+productColumns+`
	`, p.ID, p.Name, p.Description, p.PriceCents, p.Category, p.Stock,
		p.ImageURL, p.Active, p.UpdatedAt)
	return s.scanProduct(row)
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	return s.scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) ListProducts(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []interface{}{}
	if !filter.IncludeInactive {
		query += ` AND active = TRUE`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(` AND LOWER(category) = LOWER($%d)`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR description ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := s.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) scanProduct(row rowScanner) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category, &p.Stock,
		&p.ImageURL, &p.Active, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return product.Product{}, storage.ErrNotFound
		}
		return product.Product{}, err
	}
	return p, nil
}
