package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/shared"
	"github.com/toursync/toursync-admin/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
	limiter  Limiter
	logger   *slog.Logger
}

// NewService constructs a new Service. A nil limiter disables throttling.
func NewService(accounts Accounts, limiter Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, limiter: limiter, logger: logger}
}

// Authenticate validates email/password credentials. Unknown emails and wrong
// passwords are indistinguishable; an account that is not ACTIVE is rejected
// only after the password matched.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (users.User, error) {
	if s.limiter != nil {
		if _, err := s.limiter.Allow(ctx, creds.Email); err != nil {
			if errors.Is(err, httpx.ErrTooManyRequests) {
				return users.User{}, err
			}
			s.logger.Warn("sign-in limiter unavailable", slog.Any("error", err))
		}
	}

	user, err := s.accounts.GetByEmail(ctx, creds.Email)
	if errors.Is(err, httpx.ErrNotFound) {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err != nil {
		return users.User{}, fmt.Errorf("auth: lookup: %w", err)
	}
	if user.PasswordHash == "" {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if user.Status != shared.StatusActive {
		return users.User{}, shared.ErrInactiveAccount
	}
	return user, nil
}
