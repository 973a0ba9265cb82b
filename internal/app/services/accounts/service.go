// Package accounts implements registration, authentication, and account
// administration for the storefront.
package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pixelmart/storefront/internal/app/domain/account"
	"github.com/pixelmart/storefront/internal/app/storage"
	"github.com/pixelmart/storefront/internal/auth"
	"github.com/pixelmart/storefront/internal/errors"
	"github.com/pixelmart/storefront/internal/metrics"
	"github.com/pixelmart/storefront/pkg/logger"
)

// DemoOTP is the fixed one-time password accepted by the demo OTP login flow.
const DemoOTP = "123456"

const resetTokenTTL = time.Hour

// credentialsMessage is deliberately uniform: it never reveals whether the
// email or the password was wrong.
const credentialsMessage = "incorrect email or password"

// forgotMessage is deliberately uniform to avoid account enumeration.
const forgotMessage = "if an account exists for that email, a reset link has been sent"

// Service manages identity records and the login lockout state machine.
type Service struct {
	store  storage.AccountStore
	issuer *auth.TokenIssuer
	log    *logger.Logger

	lockoutThreshold int
	lockoutWindow    time.Duration
	now              func() time.Time
}

// New constructs an accounts service. threshold <= 0 defaults to 5 failures
// and window <= 0 to 15 minutes.
func New(store storage.AccountStore, issuer *auth.TokenIssuer, threshold int, window time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Service{
		store:            store,
		issuer:           issuer,
		log:              log,
		lockoutThreshold: threshold,
		lockoutWindow:    window,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// RegisterInput carries the self-registration fields. Role is absent on
// purpose: registration always yields a customer.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (account.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = account.NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return account.Account{}, errors.Validation("username, email, and password are required")
	}
	if err := account.ValidateUsername(in.Username); err != nil {
		return account.Account{}, errors.Validation(err.Error())
	}
	if err := account.ValidateEmail(in.Email); err != nil {
		return account.Account{}, errors.Validation(err.Error())
	}
	if err := account.ValidatePhone(in.Phone); err != nil {
		return account.Account{}, errors.Validation(err.Error())
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return account.Account{}, errors.Validation(err.Error())
	}

	if _, err := s.store.GetAccountByEmail(ctx, in.Email); err == nil {
		return account.Account{}, errors.Duplicate(errors.CodeDuplicateEmail, "email already registered")
	}
	if _, err := s.store.GetAccountByUsername(ctx, in.Username); err == nil {
		return account.Account{}, errors.Duplicate(errors.CodeDuplicateUsername, "username already taken")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return account.Account{}, errors.Internal("failed to hash password", err)
	}

	created, err := s.store.CreateAccount(ctx, account.Account{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         account.RoleCustomer,
		Active:       true,
	})
	if err != nil {
		return account.Account{}, errors.Internal("failed to create account", err)
	}

	s.log.Infof("account %s registered", created.ID)
	return created, nil
}

// Login authenticates by email and password, driving the lockout state
// machine. On success it returns the account and a fresh bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (account.Account, string, error) {
	email = account.NormalizeEmail(email)
	if email == "" || password == "" {
		return account.Account{}, "", errors.Validation("email and password are required")
	}
	if err := account.ValidateEmail(email); err != nil {
		return account.Account{}, "", errors.Validation(err.Error())
	}

	acct, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return account.Account{}, "", errors.Unauthorized(errors.CodeInvalidCredentials, credentialsMessage)
		}
		return account.Account{}, "", errors.Internal("failed to load account", err)
	}

	if !acct.Active {
		return account.Account{}, "", errors.Unauthorized(errors.CodeAccountDeactivated, "account deactivated")
	}

	now := s.now()
	if acct.Locked(now) {
		return account.Account{}, "", s.lockedError(acct, now)
	}

	if !auth.CheckPassword(acct.PasswordHash, password) {
		return account.Account{}, "", s.recordFailure(ctx, acct)
	}

	return s.finishLogin(ctx, acct.ID)
}

// LoginOTP authenticates by phone and the fixed demo OTP, creating a customer
// account on first use.
func (s *Service) LoginOTP(ctx context.Context, phone, otp string) (account.Account, string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || otp == "" {
		return account.Account{}, "", errors.Validation("phone and otp are required")
	}
	if err := account.ValidatePhone(phone); err != nil {
		return account.Account{}, "", errors.Validation(err.Error())
	}
	if otp != DemoOTP {
		return account.Account{}, "", errors.Unauthorized(errors.CodeInvalidOTP, "invalid one-time password")
	}

	acct, err := s.store.GetAccountByPhone(ctx, phone)
	if stderrors.Is(err, storage.ErrNotFound) {
		acct, err = s.store.CreateAccount(ctx, account.Account{
			Username: "user" + phone,
			Email:    phone + "@phone.storefront.local",
			Phone:    phone,
			Role:     account.RoleCustomer,
			Active:   true,
		})
		if err == nil {
			s.log.Infof("account %s created via OTP login", acct.ID)
		}
	}
	if err != nil {
		return account.Account{}, "", errors.Internal("failed to resolve account", err)
	}

	if !acct.Active {
		return account.Account{}, "", errors.Unauthorized(errors.CodeAccountDeactivated, "account deactivated")
	}

	return s.finishLogin(ctx, acct.ID)
}

func (s *Service) finishLogin(ctx context.Context, id string) (account.Account, string, error) {
	acct, err := s.store.RecordLoginSuccess(ctx, id)
	if err != nil {
		return account.Account{}, "", errors.Internal("failed to record login", err)
	}

	token, err := s.issuer.Issue(acct)
	if err != nil {
		return account.Account{}, "", errors.Internal("failed to issue token", err)
	}
	return acct, token, nil
}

func (s *Service) recordFailure(ctx context.Context, acct account.Account) error {
	metrics.RecordLoginFailure()

	updated, err := s.store.RecordLoginFailure(ctx, acct.ID, s.lockoutThreshold, s.lockoutWindow)
	if err != nil {
		return errors.Internal("failed to record login failure", err)
	}

	now := s.now()
	if updated.Locked(now) {
		metrics.RecordLockout()
		s.log.Warnf("account %s locked after %d failed attempts", updated.ID, updated.FailedLogins)
		return s.lockedError(updated, now)
	}

	remaining := s.lockoutThreshold - updated.FailedLogins
	return errors.Unauthorized(errors.CodeInvalidCredentials, credentialsMessage).
		WithDetails("attempts_remaining", remaining)
}

func (s *Service) lockedError(acct account.Account, now time.Time) error {
	minutes := int(math.Ceil(acct.LockedUntil.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return errors.Locked(fmt.Sprintf("account locked due to too many failed attempts, try again in %d minutes", minutes)).
		WithDetails("minutes_remaining", minutes)
}

// Me fetches the caller's account by id.
func (s *Service) Me(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return account.Account{}, errors.Unauthorized(errors.CodeAccountNotFound, "account not found")
		}
		return account.Account{}, errors.Internal("failed to load account", err)
	}
	return acct, nil
}

// List returns every account, oldest first.
func (s *Service) List(ctx context.Context) ([]account.Account, error) {
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, errors.Internal("failed to list accounts", err)
	}
	return accts, nil
}

// UpdateRole sets an account's role. Only known roles are accepted.
func (s *Service) UpdateRole(ctx context.Context, id string, role account.Role) (account.Account, error) {
	if !role.Valid() {
		return account.Account{}, errors.Validation("role must be admin, editor, or customer")
	}

	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return account.Account{}, errors.NotFound("account not found")
		}
		return account.Account{}, errors.Internal("failed to load account", err)
	}

	acct.Role = role
	updated, err := s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, errors.Internal("failed to update account", err)
	}
	s.log.Infof("account %s role set to %s", id, role)
	return updated, nil
}

// SetActive toggles the active flag. Accounts are never hard-deleted.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return account.Account{}, errors.NotFound("account not found")
		}
		return account.Account{}, errors.Internal("failed to load account", err)
	}

	acct.Active = active
	updated, err := s.store.UpdateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, errors.Internal("failed to update account", err)
	}
	s.log.Infof("account %s active=%v", id, active)
	return updated, nil
}

// ForgotPassword issues a reset token when the account exists. The response
// message is uniform either way so callers cannot enumerate accounts. Delivery
// is simulated through the logger.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = account.NormalizeEmail(email)
	if err := account.ValidateEmail(email); err != nil {
		return "", errors.Validation(err.Error())
	}

	acct, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return forgotMessage, nil
		}
		return "", errors.Internal("failed to load account", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return "", errors.Internal("failed to generate reset token", err)
	}

	expires := s.now().Add(resetTokenTTL)
	acct.ResetTokenHash = hashResetToken(token)
	acct.ResetTokenExpires = &expires
	if _, err := s.store.UpdateAccount(ctx, acct); err != nil {
		return "", errors.Internal("failed to store reset token", err)
	}

	// Simulated delivery; a mail provider would take over here.
	s.log.WithField("account", acct.ID).Infof("password reset token issued: %s", token)
	return forgotMessage, nil
}

// ResetPassword consumes a reset token and installs a new password. Any
// lockout state clears with the reset.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return errors.Validation("reset token is required")
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return errors.Validation(err.Error())
	}

	acct, err := s.store.GetAccountByResetToken(ctx, hashResetToken(token))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.Validation("invalid or expired reset token")
		}
		return errors.Internal("failed to load account", err)
	}
	if acct.ResetTokenExpires == nil || s.now().After(*acct.ResetTokenExpires) {
		return errors.Validation("invalid or expired reset token")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return errors.Internal("failed to hash password", err)
	}

	acct.PasswordHash = hash
	acct.ResetTokenHash = ""
	acct.ResetTokenExpires = nil
	acct.FailedLogins = 0
	acct.LockedUntil = nil
	if _, err := s.store.UpdateAccount(ctx, acct); err != nil {
		return errors.Internal("failed to update password", err)
	}

	s.log.Infof("account %s password reset", acct.ID)
	return nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
