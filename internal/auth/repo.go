package auth

import (
	"context"

	"github.com/toursync/toursync-admin/internal/users"
)

// Accounts looks up sign-in candidates.
type Accounts interface {
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

var _ Accounts = (*users.Repository)(nil)
