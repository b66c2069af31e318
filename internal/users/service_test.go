package users_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/toursync/toursync-admin/internal/changelog"
	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/rbac"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
	"github.com/toursync/toursync-admin/internal/users"
)

type stubRepo struct {
	mu         sync.Mutex
	byID       map[int64]users.User
	nextID     int64
	createErr  error
	lastFilter users.ListFilter
}

func newStubRepo(seed ...users.User) *stubRepo {
	r := &stubRepo{byID: map[int64]users.User{}, nextID: 100}
	for _, u := range seed {
		r.byID[u.ID] = u
	}
	return r
}

func (r *stubRepo) Create(ctx context.Context, u users.User) (users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return users.User{}, r.createErr
	}
	r.nextID++
	u.ID = r.nextID
	r.byID[u.ID] = u
	return u, nil
}

func (r *stubRepo) GetByID(ctx context.Context, id int64) (users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Status == shared.StatusDeleted {
		return users.User{}, users.ErrUserNotFound
	}
	return u, nil
}

func (r *stubRepo) GetByPublicID(ctx context.Context, publicID string) (users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.PublicID == publicID && u.Status != shared.StatusDeleted {
			return u, nil
		}
	}
	return users.User{}, users.ErrUserNotFound
}

func (r *stubRepo) Update(ctx context.Context, publicID string, mutate func(*users.User) error) (users.User, users.User, error) {
	before, err := r.GetByPublicID(ctx, publicID)
	if err != nil {
		return users.User{}, users.User{}, err
	}
	after := before
	if err := mutate(&after); err != nil {
		return users.User{}, users.User{}, err
	}
	r.mu.Lock()
	r.byID[after.ID] = after
	r.mu.Unlock()
	return before, after, nil
}

func (r *stubRepo) List(ctx context.Context, f users.ListFilter) ([]users.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = f
	var out []users.User
	for _, u := range r.byID {
		if u.Status != shared.StatusDeleted {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

type allowTables map[string]bool

func (a allowTables) HasPermission(ctx context.Context, subj rbac.Subject, table string, action rbac.Action, rec int64) bool {
	return a[table+"/"+action.String()]
}

type branchNames map[int64]string

func (b branchNames) Names(ctx context.Context, ids ...int64) (string, error) {
	var names []string
	for _, id := range ids {
		if n, ok := b[id]; ok {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", "), nil
}

type captureRecorder struct {
	changes []changelog.Change
}

func (c *captureRecorder) Record(ctx context.Context, ch changelog.Change) {
	c.changes = append(c.changes, ch)
}

type stubEvents struct {
	last changelog.EventFilter
}

func (s *stubEvents) List(ctx context.Context, f changelog.EventFilter) ([]changelog.Event, int, error) {
	s.last = f
	return []changelog.Event{{ID: 1, Details: "x"}}, 21, nil
}

var adminUser = users.User{ID: 1, PublicID: "admin-pid", Name: "Ada", Email: "ada@toursync.test", Role: shared.RoleAdmin, Status: shared.StatusActive, BranchID: 1}

var bob = users.User{
	ID:           2,
	PublicID:     "bob-pid",
	Name:         "Bob",
	Email:        "bob@toursync.test",
	Phone:        "254700000001",
	NationalID:   "A1",
	Role:         shared.RoleAgent,
	Status:       shared.StatusPending,
	BranchID:     1,
	PasswordHash: "old-hash",
}

var gone = users.User{ID: 3, PublicID: "gone-pid", Name: "Gone", Status: shared.StatusDeleted}

var actor = &session.Payload{ID: 1, Role: shared.RoleAdmin}

type fixture struct {
	svc      *users.Service
	repo     *stubRepo
	recorder *captureRecorder
	events   *stubEvents
	rules    *tableRules
}

func newFixture(perms allowTables) fixture {
	repo := newStubRepo(adminUser, bob, gone)
	rec := &captureRecorder{}
	ev := &stubEvents{}
	svc := users.NewService(users.Deps{
		Repo:       repo,
		Branches:   branchNames{1: "Nairobi", 2: "Mombasa"},
		Authz:      perms,
		Recorder:   rec,
		Events:     ev,
		BcryptCost: bcrypt.MinCost,
	})
	return fixture{svc: svc, repo: repo, recorder: rec, events: ev}
}

func validCreate() users.CreateInput {
	return users.CreateInput{
		Name:       " Carol Njeri ",
		Phone:      "0712 345 678",
		NationalID: "C3",
		Email:      "carol@toursync.test",
		Role:       shared.RoleAgent,
		BranchID:   2,
		Password:   "secret1",
	}
}

func TestCreateRequiresUpdatePermission(t *testing.T) {
	f := newFixture(allowTables{"users/read": true})
	_, err := f.svc.Create(context.Background(), actor, validCreate())
	require.True(t, errors.Is(err, httpx.ErrForbidden))
	assert.Equal(t, "You don't have permission to create user!", httpx.Detail(err, httpx.ErrForbidden))

	_, err = f.svc.Create(context.Background(), nil, validCreate())
	assert.True(t, errors.Is(err, httpx.ErrUnauthorized))
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(allowTables{"users/update": true})
	mutations := []func(*users.CreateInput){
		func(in *users.CreateInput) { in.Name = "Carol  Njeri" },
		func(in *users.CreateInput) { in.Email = "nope" },
		func(in *users.CreateInput) { in.Role = "ROOT" },
		func(in *users.CreateInput) { in.BranchID = 0 },
		func(in *users.CreateInput) { in.Password = "12345" },
		func(in *users.CreateInput) { in.NationalID = " " },
		func(in *users.CreateInput) { in.Phone = "07123" },
	}
	for i, mutate := range mutations {
		in := validCreate()
		mutate(&in)
		_, err := f.svc.Create(context.Background(), actor, in)
		assert.True(t, errors.Is(err, httpx.ErrValidation), "case %d", i)
	}
}

func TestCreateStoresNormalizedPendingUser(t *testing.T) {
	f := newFixture(allowTables{"users/update": true})
	safe, err := f.svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	assert.Equal(t, "Carol Njeri", safe.Name)
	assert.Equal(t, "254712345678", safe.Phone)
	assert.Equal(t, shared.StatusPending, safe.Status)
	assert.Len(t, safe.PublicID, 36)

	stored, err := f.repo.GetByID(context.Background(), safe.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	require.Len(t, f.recorder.changes, 1)
	ch := f.recorder.changes[0]
	assert.Equal(t, changelog.ActionCreate, ch.Action)
	assert.Equal(t, "users", ch.Table)
	assert.Equal(t, safe.ID, ch.RecordID)
	assert.Equal(t, changelog.Actor{ID: 1, Name: "Ada", Email: "ada@toursync.test"}, ch.Actor)
}

func TestCreatePropagatesDuplicate(t *testing.T) {
	f := newFixture(allowTables{"users/update": true})
	f.repo.createErr = errors.Join(httpx.ErrDuplicate, errors.New("Email already exists"))
	_, err := f.svc.Create(context.Background(), actor, validCreate())
	assert.True(t, errors.Is(err, httpx.ErrDuplicate))
	assert.Empty(t, f.recorder.changes)
}

func validUpdate() users.UpdateInput {
	return users.UpdateInput{
		Name:       "Bob",
		Phone:      "0700000001",
		NationalID: "A1",
		Email:      "bob@toursync.test",
		Role:       shared.RoleManager,
		Status:     shared.StatusActive,
		BranchID:   2,
	}
}

func TestUpdateRecordsChanges(t *testing.T) {
	f := newFixture(allowTables{"users/update": true})
	in := validUpdate()
	in.Password = "newpass1"

	safe, err := f.svc.Update(context.Background(), actor, "bob-pid", in)
	require.NoError(t, err)
	assert.Equal(t, shared.RoleManager, safe.Role)
	require.NotNil(t, safe.Branch)
	assert.Equal(t, "Mombasa", safe.Branch.Name)

	stored, _ := f.repo.GetByID(context.Background(), 2)
	assert.NotEqual(t, "old-hash", stored.PasswordHash)

	require.Len(t, f.recorder.changes, 1)
	details := changelog.Details(f.recorder.changes[0])
	assert.Equal(t,
		"user[Bob(bob@toursync.test)] updated by [Ada(ada@toursync.test)]. Changes: branch from Nairobi to Mombasa, status from Pending to Active, role from Agent to Manager. Password updated.",
		details)
}

func TestUpdateKeepsPasswordWhenEmpty(t *testing.T) {
	f := newFixture(allowTables{"users/update": true})
	in := validUpdate()
	in.BranchID = 1
	in.Role = shared.RoleAgent
	in.Status = shared.StatusPending

	_, err := f.svc.Update(context.Background(), actor, "bob-pid", in)
	require.NoError(t, err)

	stored, _ := f.repo.GetByID(context.Background(), 2)
	assert.Equal(t, "old-hash", stored.PasswordHash)
	assert.Equal(t,
		"user[Bob(bob@toursync.test)] update triggered by [Ada(ada@toursync.test)]. No values were modified",
		changelog.Details(f.recorder.changes[0]))
}

func TestUpdateErrors(t *testing.T) {
	f := newFixture(allowTables{"users/update": true})
	_, err := f.svc.Update(context.Background(), actor, "gone-pid", validUpdate())
	assert.True(t, errors.Is(err, httpx.ErrNotFound))

	in := validUpdate()
	in.Status = shared.StatusDeleted
	_, err = f.svc.Update(context.Background(), actor, "bob-pid", in)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	denied := newFixture(allowTables{})
	_, err = denied.svc.Update(context.Background(), actor, "bob-pid", validUpdate())
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
	assert.Empty(t, denied.recorder.changes)
}

func TestGetExcludesDeleted(t *testing.T) {
	f := newFixture(allowTables{})
	safe, err := f.svc.Get(context.Background(), actor, "bob-pid")
	require.NoError(t, err)
	assert.Equal(t, "Bob", safe.Name)

	_, err = f.svc.Get(context.Background(), actor, "gone-pid")
	require.True(t, errors.Is(err, httpx.ErrNotFound))
	assert.Equal(t, "User not found.", httpx.Detail(err, httpx.ErrNotFound))
}

func TestListClampsFilter(t *testing.T) {
	f := newFixture(allowTables{})
	list, page, err := f.svc.List(context.Background(), actor, users.ListFilter{Page: -1, Limit: 500, Role: "ROOT", Status: shared.StatusActive})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, shared.Pagination{Page: 1, Limit: 10, Total: 2, TotalPages: 1}, page)
	assert.Equal(t, users.ListFilter{Page: 1, Limit: 10, Status: shared.StatusActive}, f.repo.lastFilter)

	_, _, err = f.svc.List(context.Background(), nil, users.ListFilter{})
	require.True(t, errors.Is(err, httpx.ErrUnauthorized))
}

func TestEventsScopes(t *testing.T) {
	f := newFixture(allowTables{})
	_, page, err := f.svc.Events(context.Background(), actor, "bob-pid", users.EventsQuery{Scope: "on", Page: 2, Limit: 5, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, changelog.EventFilter{Table: "users", Scope: changelog.ScopeOn, UserID: 2, Page: 2, Limit: 5, Ascending: true}, f.events.last)
	assert.Equal(t, 5, page.TotalPages)

	_, _, err = f.svc.Events(context.Background(), actor, "bob-pid", users.EventsQuery{Scope: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, changelog.ScopeBy, f.events.last.Scope)
	assert.Equal(t, 10, f.events.last.Limit)

	_, _, err = f.svc.Events(context.Background(), actor, "gone-pid", users.EventsQuery{})
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestCurrent(t *testing.T) {
	f := newFixture(allowTables{})

	ctx := session.ContextWithUser(context.Background(), "sid", actor)
	me, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin-pid", me.PublicID)
	assert.Equal(t, "ada@toursync.test", me.Email)

	_, err = f.svc.Current(context.Background())
	require.True(t, errors.Is(err, httpx.ErrUnauthorized))

	ghost := session.ContextWithUser(context.Background(), "sid", &session.Payload{ID: 3, Role: shared.RoleAgent})
	_, err = f.svc.Current(ghost)
	require.True(t, errors.Is(err, httpx.ErrNotFound))
}
