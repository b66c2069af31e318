package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/toursync/toursync-admin/internal/shared"
)

// ErrInvalidPayload is returned when a session payload fails validation.
var ErrInvalidPayload = errors.New("session: invalid payload")

// Payload is the minimal user projection kept in a session.
type Payload struct {
	ID             int64       `json:"id" validate:"gt=0"`
	Role           shared.Role `json:"role" validate:"required,user_role"`
	PasswordExpiry Expiry      `json:"password_expiry"`
}

// Expiry is a timestamp that accepts the date encodings written by older
// clients and the database driver.
type Expiry struct {
	time.Time
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// MarshalJSON encodes the zero time as null.
func (e Expiry) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(e.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON coerces strings, unix milliseconds and null into a time.
func (e *Expiry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		e.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, layout := range expiryLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				e.Time = t
				return nil
			}
		}
		return fmt.Errorf("session: cannot coerce %q to a date", raw)
	}
	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("session: cannot coerce %s to a date", data)
	}
	e.Time = time.UnixMilli(millis).UTC()
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return shared.Role(fl.Field().String()).Valid()
	})
	return v
}

func decodePayload(v *validator.Validate, data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := v.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return &p, nil
}
