package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
)

type stubRules struct {
	grant bool
	err   error
	calls int
	last  RuleQuery
}

func (s *stubRules) MatchRule(ctx context.Context, q RuleQuery) (bool, error) {
	s.calls++
	s.last = q
	return s.grant, s.err
}

func TestParseAction(t *testing.T) {
	cases := []struct {
		raw     string
		kind    Kind
		allowed bool
	}{
		{"read", KindRead, true},
		{"create", KindCreate, true},
		{"general", KindGeneral, true},
		{"BLOCK", KindCustom, true},
		{"DELETE_PASSKEY", KindCustom, true},
		{"block", KindCustom, false},
		{"READ", KindCustom, false},
		{"launch", KindCustom, false},
		{"", KindCustom, false},
	}
	for _, tc := range cases {
		action, allowed := ParseAction(tc.raw)
		if action.Kind() != tc.kind {
			t.Fatalf("%q: expected kind %d, got %d", tc.raw, tc.kind, action.Kind())
		}
		if allowed != tc.allowed || action.Allowed() != tc.allowed {
			t.Fatalf("%q: expected allowed=%v", tc.raw, tc.allowed)
		}
	}
	if (Action{}).Allowed() {
		t.Fatalf("zero action must not be allowed")
	}
}

func TestHasPermissionRejectsUnknownActionWithoutLookup(t *testing.T) {
	rules := &stubRules{grant: true}
	eval := NewEvaluator(rules, nil)
	for _, subj := range []Subject{{ID: 1, Role: shared.RoleSuperAdmin}, {ID: 2, Role: shared.RoleAdmin}} {
		if eval.HasPermission(context.Background(), subj, "users", Custom("launch"), 0) {
			t.Fatalf("expected deny for %s", subj.Role)
		}
	}
	if rules.calls != 0 {
		t.Fatalf("expected no rule lookups, got %d", rules.calls)
	}
}

func TestHasPermissionSuperAdminBypassesRules(t *testing.T) {
	rules := &stubRules{}
	eval := NewEvaluator(rules, nil)
	if !eval.HasPermission(context.Background(), Subject{ID: 1, Role: shared.RoleSuperAdmin}, "users", Delete, 0) {
		t.Fatalf("expected super admin to be allowed")
	}
	if rules.calls != 0 {
		t.Fatalf("expected no rule lookups")
	}
}

func TestHasPermissionEmptyRoleDenied(t *testing.T) {
	rules := &stubRules{grant: true}
	if NewEvaluator(rules, nil).HasPermission(context.Background(), Subject{ID: 9}, "users", Read, 0) {
		t.Fatalf("expected deny for empty role")
	}
}

func TestHasPermissionBuildsQuery(t *testing.T) {
	rules := &stubRules{grant: true}
	eval := NewEvaluator(rules, nil)
	ok := eval.HasPermission(context.Background(), Subject{ID: 7, Role: shared.RoleAgent}, "bookings", Custom(ActionApprove), 12)
	if !ok {
		t.Fatalf("expected allow when a rule matches")
	}
	want := RuleQuery{Role: shared.RoleAgent, UserID: 7, Table: "bookings", Record: 12, Action: Custom(ActionApprove)}
	if rules.last != want {
		t.Fatalf("unexpected query %+v", rules.last)
	}

	rules.grant = false
	if eval.HasPermission(context.Background(), Subject{ID: 7, Role: shared.RoleAgent}, "bookings", Read, 0) {
		t.Fatalf("expected deny without rule")
	}
}

func TestHasPermissionLookupErrorDenies(t *testing.T) {
	rules := &stubRules{grant: true, err: errors.New("connection reset")}
	if NewEvaluator(rules, nil).HasPermission(context.Background(), Subject{ID: 7, Role: shared.RoleManager}, "users", Read, 0) {
		t.Fatalf("expected deny on lookup error")
	}
}

func TestMatchRuleSQL(t *testing.T) {
	sql, args, err := matchRuleSQL(RuleQuery{Role: shared.RoleAdmin, UserID: 3, Table: "users", Action: Update})
	if err != nil {
		t.Fatalf("flag sql: %v", err)
	}
	if !strings.Contains(sql, `"update" = 1`) || len(args) != 4 {
		t.Fatalf("unexpected flag sql %q (%d args)", sql, len(args))
	}

	sql, args, err = matchRuleSQL(RuleQuery{Role: shared.RoleAdmin, UserID: 3, Table: "users", Action: Custom(ActionBlock)})
	if err != nil {
		t.Fatalf("custom sql: %v", err)
	}
	if !strings.Contains(sql, "custom_action = $5") || args[4] != ActionBlock {
		t.Fatalf("unexpected custom sql %q %v", sql, args)
	}

	if _, _, err := matchRuleSQL(RuleQuery{}); err == nil {
		t.Fatalf("expected error for invalid action")
	}
}

func TestMiddlewareRequire(t *testing.T) {
	rules := &stubRules{}
	mw := Middleware{Evaluator: NewEvaluator(rules, nil)}
	handler := mw.Require("users", Read)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req = req.WithContext(session.ContextWithUser(req.Context(), "sid", &session.Payload{ID: 4, Role: shared.RoleAgent}))

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "You don't have permission to view users!") {
		t.Fatalf("unexpected body %s", res.Body.String())
	}

	rules.grant = true
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected pass through, got %d", res.Code)
	}
}
