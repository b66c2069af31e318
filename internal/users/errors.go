package users

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
)

const uniqueViolation = "23505"

var duplicateMessages = []struct {
	column  string
	message string
}{
	{"email", "Email already exists"},
	{"phone", "Phone number already exists"},
	{"national_id", "National ID already exists"},
}

// MapWriteError converts unique violations on users into duplicate errors
// carrying a user facing message. Other errors pass through unchanged.
func MapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	target := pgErr.ConstraintName + " " + pgErr.Detail
	for _, d := range duplicateMessages {
		if strings.Contains(target, d.column) {
			return fmt.Errorf("%w: %s", httpx.ErrDuplicate, d.message)
		}
	}
	return fmt.Errorf("%w: Duplicate entry", httpx.ErrDuplicate)
}
