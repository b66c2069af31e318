package users_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/rbac"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/users"
)

type tableRules struct {
	allow   map[string]bool
	lookups int
}

func (t *tableRules) MatchRule(ctx context.Context, q rbac.RuleQuery) (bool, error) {
	t.lookups++
	return t.allow[q.Table+"/"+q.Action.String()], nil
}

func newRouter(t *testing.T, perms map[string]bool) (http.Handler, fixture) {
	t.Helper()
	f := newFixture(allowTables(perms))
	f.rules = &tableRules{allow: perms}
	mw := rbac.Middleware{Evaluator: rbac.NewEvaluator(f.rules, nil)}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.ContextWithUser(req.Context(), "sid", actor)))
		})
	})
	r.Route("/api/users", users.NewHandler(nil, f.svc, mw).MountRoutes)
	return r, f
}

func problem(t *testing.T, res *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(res.Body).Decode(&p))
	return p
}

func TestHandlerListRequiresRead(t *testing.T) {
	router, _ := newRouter(t, map[string]bool{})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "You don't have permission to view users!", problem(t, res).Detail)
}

func TestHandlerList(t *testing.T) {
	router, f := newRouter(t, map[string]bool{"users/read": true})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users?page=1&limit=5&branch_id=2&search=bo", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Data       []users.SafeUser `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			Limit      int `json:"limit"`
			Total      int `json:"total"`
			TotalPages int `json:"totalPages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, 5, body.Pagination.Limit)
	assert.Equal(t, int64(2), f.repo.lastFilter.BranchID)
	assert.Equal(t, "bo", f.repo.lastFilter.Search)
	assert.NotContains(t, res.Body.String(), "old-hash")
	assert.Equal(t, 1, f.rules.lookups)
}

func TestHandlerCreate(t *testing.T) {
	router, _ := newRouter(t, map[string]bool{"users/update": true})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{not json`)))
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid input", problem(t, res).Detail)

	body := `{"name":"Carol","phone":"0712345678","national_id":"C3","email":"carol@toursync.test","role":"AGENT","branch_id":2,"password":"secret1"}`
	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Contains(t, res.Body.String(), `"success":true`)
	assert.NotContains(t, res.Body.String(), "password\"")
}

func TestHandlerCreateForbidden(t *testing.T) {
	router, _ := newRouter(t, map[string]bool{"users/read": true})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "You don't have permission to create user!", problem(t, res).Detail)
}

func TestHandlerGet(t *testing.T) {
	router, _ := newRouter(t, map[string]bool{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users/bob-pid", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"public_id":"bob-pid"`)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users/gone-pid", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "User not found.", problem(t, res).Detail)
}

func TestHandlerMe(t *testing.T) {
	router, _ := newRouter(t, map[string]bool{})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"public_id":"admin-pid"`)
	assert.NotContains(t, res.Body.String(), `"password":`)
}

func TestHandlerUpdate(t *testing.T) {
	router, f := newRouter(t, map[string]bool{"users/update": true})
	body := `{"name":"Bob","phone":"254700000001","national_id":"A1","email":"bob@toursync.test","role":"AGENT","status":"ACTIVE","branch_id":1,"password":""}`

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/api/users/bob-pid", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"status":"ACTIVE"`)
	require.Len(t, f.recorder.changes, 1)
}

func TestHandlerEvents(t *testing.T) {
	router, f := newRouter(t, map[string]bool{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users/bob-pid/events?type=on&sort=asc&page=3", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, f.events.last.Ascending)
	assert.Equal(t, 3, f.events.last.Page)
	assert.Contains(t, res.Body.String(), `"totalPages":3`)
}
