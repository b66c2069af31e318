package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursync/toursync-admin/internal/shared"
)

func TestExpiryCoercion(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2025-03-01T10:00:00Z"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2025-03-01T10:00:00.123Z"`, time.Date(2025, 3, 1, 10, 0, 0, 123000000, time.UTC)},
		{`"2025-03-01 10:00:00"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2025-03-01 10:00:00.500"`, time.Date(2025, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		{`"2025-03-01"`, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`1740823200000`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
	}
	for _, tc := range cases {
		var e Expiry
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &e), tc.raw)
		assert.True(t, tc.want.Equal(e.Time), "%s: got %s", tc.raw, e.Time)
	}
}

func TestExpiryRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`"tomorrow"`, `"2025-13-01"`, `true`, `{}`} {
		var e Expiry
		assert.Error(t, json.Unmarshal([]byte(raw), &e), raw)
	}
}

func TestExpiryMarshalsZeroAsNull(t *testing.T) {
	data, err := json.Marshal(Payload{ID: 1, Role: shared.RoleAgent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"role":"AGENT","password_expiry":null}`, string(data))
}

func TestDecodePayload(t *testing.T) {
	v := newValidator()

	p, err := decodePayload(v, []byte(`{"id":7,"role":"MANAGER","password_expiry":"2030-01-01"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, shared.RoleManager, p.Role)

	invalid := []string{
		`{"id":7,"role":"ROOT","password_expiry":null}`,
		`{"id":0,"role":"ADMIN","password_expiry":null}`,
		`{"id":"7","role":"ADMIN","password_expiry":null}`,
		`{"id":7,"password_expiry":null}`,
		`{"id":7,"role":"ADMIN","password_expiry":"soon"}`,
		`not json`,
	}
	for _, raw := range invalid {
		_, err := decodePayload(v, []byte(raw))
		assert.True(t, errors.Is(err, ErrInvalidPayload), raw)
	}
}
