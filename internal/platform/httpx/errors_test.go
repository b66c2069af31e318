package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{fmt.Errorf("%w: User not found.", httpx.ErrNotFound), http.StatusNotFound, "User not found."},
		{fmt.Errorf("%w: Email already exists", httpx.ErrDuplicate), http.StatusConflict, "Email already exists"},
		{fmt.Errorf("%w: Invalid input", httpx.ErrValidation), http.StatusBadRequest, "Invalid input"},
		{httpx.ErrForbidden, http.StatusForbidden, "forbidden"},
		{httpx.ErrTooManyRequests, http.StatusTooManyRequests, "too many requests"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpx.RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body httpx.ProblemDetail
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.detail, body.Detail)
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestWantsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	assert.False(t, httpx.WantsJSON(req))
	req.Header.Set("Accept", "application/json, text/plain")
	assert.True(t, httpx.WantsJSON(req))
}
