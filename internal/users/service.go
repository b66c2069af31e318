package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/toursync/toursync-admin/internal/changelog"
	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/rbac"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByPublicID(ctx context.Context, publicID string) (User, error)
	Update(ctx context.Context, publicID string, mutate func(*User) error) (User, User, error)
	List(ctx context.Context, f ListFilter) ([]User, int, error)
}

// BranchNamer renders branch names for change log snapshots.
type BranchNamer interface {
	Names(ctx context.Context, ids ...int64) (string, error)
}

// Authorizer answers permission checks.
type Authorizer interface {
	HasPermission(ctx context.Context, subj rbac.Subject, table string, action rbac.Action, recordID int64) bool
}

// ChangeRecorder receives change log entries.
type ChangeRecorder interface {
	Record(ctx context.Context, c changelog.Change)
}

// EventLister pages over change log entries.
type EventLister interface {
	List(ctx context.Context, f changelog.EventFilter) ([]changelog.Event, int, error)
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Repo        RepositoryPort
	Branches    BranchNamer
	Authz       Authorizer
	Recorder    ChangeRecorder
	Events      EventLister
	Logger      *slog.Logger
	CountryCode string
	BcryptCost  int
}

// Service handles user business logic.
type Service struct {
	deps     Deps
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.CountryCode == "" {
		deps.CountryCode = DefaultCountryCode
	}
	if deps.BcryptCost == 0 {
		deps.BcryptCost = 12
	}
	return &Service{deps: deps, validate: newValidator()}
}

var (
	errSessionExpired = fmt.Errorf("%w: Session expired!", httpx.ErrUnauthorized)
	errInvalidInput   = fmt.Errorf("%w: Invalid input", httpx.ErrValidation)
	errInvalidPhone   = fmt.Errorf("%w: Provide a valid phone number", httpx.ErrValidation)
)

// Create registers a new PENDING user.
func (s *Service) Create(ctx context.Context, actor *session.Payload, in CreateInput) (SafeUser, error) {
	if actor == nil {
		return SafeUser{}, errSessionExpired
	}
	if !s.deps.Authz.HasPermission(ctx, rbac.SubjectOf(actor), Table, rbac.Update, 0) {
		return SafeUser{}, fmt.Errorf("%w: You don't have permission to create user!", httpx.ErrForbidden)
	}
	in.Normalize()
	if err := s.validate.Struct(in); err != nil {
		return SafeUser{}, errInvalidInput
	}
	phone := NormalizePhone(in.Phone, s.deps.CountryCode)
	if !ValidPhone(phone, s.deps.CountryCode) {
		return SafeUser{}, errInvalidPhone
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.deps.BcryptCost)
	if err != nil {
		return SafeUser{}, fmt.Errorf("users: hash password: %w", err)
	}

	created, err := s.deps.Repo.Create(ctx, User{
		PublicID:     uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        phone,
		NationalID:   in.NationalID,
		BranchID:     in.BranchID,
		Role:         in.Role,
		Status:       shared.StatusPending,
		PasswordHash: string(hash),
	})
	if err != nil {
		return SafeUser{}, err
	}

	s.record(ctx, actor, changelog.Change{
		Action:   changelog.ActionCreate,
		Entity:   created.Label(),
		Table:    Table,
		RecordID: created.ID,
		Note:     "Role " + changelog.Humanize(string(created.Role)) + ".",
	})
	return created.Safe(), nil
}

// Update applies in to the user identified by publicID and records what
// changed.
func (s *Service) Update(ctx context.Context, actor *session.Payload, publicID string, in UpdateInput) (SafeUser, error) {
	if actor == nil {
		return SafeUser{}, errSessionExpired
	}
	if !s.deps.Authz.HasPermission(ctx, rbac.SubjectOf(actor), Table, rbac.Update, 0) {
		return SafeUser{}, fmt.Errorf("%w: You don't have permission to update user!", httpx.ErrForbidden)
	}
	in.Normalize()
	if err := s.validate.Struct(in); err != nil {
		return SafeUser{}, errInvalidInput
	}
	phone := NormalizePhone(in.Phone, s.deps.CountryCode)
	if !ValidPhone(phone, s.deps.CountryCode) {
		return SafeUser{}, errInvalidPhone
	}
	var hash []byte
	if in.Password != "" {
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(in.Password), s.deps.BcryptCost); err != nil {
			return SafeUser{}, fmt.Errorf("users: hash password: %w", err)
		}
	}

	before, after, err := s.deps.Repo.Update(ctx, publicID, func(u *User) error {
		u.Name = in.Name
		u.Email = in.Email
		u.Phone = phone
		u.NationalID = in.NationalID
		u.BranchID = in.BranchID
		u.Role = in.Role
		u.Status = in.Status
		if hash != nil {
			u.PasswordHash = string(hash)
		}
		return nil
	})
	if err != nil {
		return SafeUser{}, err
	}

	var note string
	if hash != nil {
		note = "Password updated."
	}
	oldBranch, newBranch := s.branchNames(ctx, before.BranchID, after.BranchID)
	after.BranchName = newBranch
	s.record(ctx, actor, changelog.Change{
		Action:   changelog.ActionUpdate,
		Entity:   before.Label(),
		Table:    Table,
		RecordID: before.ID,
		Before:   snapshot(before, oldBranch),
		After:    snapshot(after, newBranch),
		Note:     note,
	})
	return after.Safe(), nil
}

// Get returns the live user with the given public id.
func (s *Service) Get(ctx context.Context, actor *session.Payload, publicID string) (SafeUser, error) {
	if actor == nil {
		return SafeUser{}, errSessionExpired
	}
	u, err := s.deps.Repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return SafeUser{}, err
	}
	return u.Safe(), nil
}

// List returns one page of users. The users/read rule is enforced by the
// route, see Handler.MountRoutes.
func (s *Service) List(ctx context.Context, actor *session.Payload, f ListFilter) ([]SafeUser, shared.Pagination, error) {
	if actor == nil {
		return nil, shared.Pagination{}, errSessionExpired
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	if f.Role != "" && !f.Role.Valid() {
		f.Role = ""
	}
	if f.Status != "" && !f.Status.Valid() {
		f.Status = ""
	}

	rows, total, err := s.deps.Repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	out := make([]SafeUser, 0, len(rows))
	for _, u := range rows {
		out = append(out, u.Safe())
	}
	return out, shared.NewPagination(f.Page, f.Limit, total), nil
}

// EventsQuery selects a page of change log entries for a user.
type EventsQuery struct {
	Scope     changelog.EventScope
	Page      int
	Limit     int
	Ascending bool
}

// Events lists change log entries made by ("by") or about ("on") a user.
func (s *Service) Events(ctx context.Context, actor *session.Payload, publicID string, q EventsQuery) ([]changelog.Event, shared.Pagination, error) {
	if actor == nil {
		return nil, shared.Pagination{}, errSessionExpired
	}
	u, err := s.deps.Repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if q.Scope != changelog.ScopeOn {
		q.Scope = changelog.ScopeBy
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 10
	}
	events, total, err := s.deps.Events.List(ctx, changelog.EventFilter{
		Table:     Table,
		Scope:     q.Scope,
		UserID:    u.ID,
		Page:      q.Page,
		Limit:     q.Limit,
		Ascending: q.Ascending,
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return events, shared.NewPagination(q.Page, q.Limit, total), nil
}

// branchNames resolves display names when the branch changed. Both names are
// empty otherwise.
func (s *Service) branchNames(ctx context.Context, oldID, newID int64) (string, string) {
	if oldID == newID || s.deps.Branches == nil {
		return "", ""
	}
	oldName, err := s.deps.Branches.Names(ctx, oldID)
	if err != nil {
		s.deps.Logger.Warn("branch lookup failed", slog.Any("error", err))
		return "", ""
	}
	newName, err := s.deps.Branches.Names(ctx, newID)
	if err != nil {
		s.deps.Logger.Warn("branch lookup failed", slog.Any("error", err))
		return "", ""
	}
	return oldName, newName
}

// Current returns the full record of the user signed in on ctx.
func (s *Service) Current(ctx context.Context) (*SafeUser, error) {
	return s.current(ctx, session.UserFromContext(ctx))
}

func (s *Service) current(ctx context.Context, actor *session.Payload) (*SafeUser, error) {
	if actor == nil {
		return nil, errSessionExpired
	}
	u, err := s.deps.Repo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	safe := u.Safe()
	return &safe, nil
}

func (s *Service) record(ctx context.Context, actor *session.Payload, c changelog.Change) {
	if s.deps.Recorder == nil {
		return
	}
	c.Actor = changelog.Actor{ID: actor.ID}
	if who, err := s.current(ctx, actor); err == nil {
		c.Actor.Name = who.Name
		c.Actor.Email = who.Email
	} else {
		s.deps.Logger.Warn("change log actor lookup failed", slog.Int64("user_id", actor.ID), slog.Any("error", err))
	}
	s.deps.Recorder.Record(ctx, c)
}

func snapshot(u User, branch string) changelog.Snapshot {
	return changelog.Snapshot{
		{Name: "name", Value: u.Name},
		{Name: "email", Value: u.Email},
		{Name: "branch", Value: branch},
		{Name: "status", Value: changelog.Humanize(string(u.Status))},
		{Name: "phone", Value: u.Phone},
		{Name: "national_id", Value: u.NationalID},
		{Name: "role", Value: changelog.Humanize(string(u.Role))},
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return shared.Role(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("user_status", func(fl validator.FieldLevel) bool {
		return shared.UserStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("single_spaced", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for i := 1; i < len(s); i++ {
			if isSpace(s[i]) && isSpace(s[i-1]) {
				return false
			}
		}
		return true
	})
	return v
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
