package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const (
	idBytes  = 24
	idLength = 32 // base64url length of idBytes

	userIndexPrefix = "user:"
)

// Options configures a Manager.
type Options struct {
	CookieName    string
	TTL           time.Duration
	Secure        bool
	SingleSession bool
}

// Manager translates between cookies and Store entries.
type Manager struct {
	store     Store
	opts      Options
	logger    *slog.Logger
	validate  *validator.Validate
	refreshes singleflight.Group
}

// NewManager constructs a Manager.
func NewManager(store Store, opts Options, logger *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "session-id"
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, opts: opts, logger: logger, validate: newValidator()}
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.opts.TTL
}

// Secure reports whether cookies are issued with the Secure attribute.
func (m *Manager) Secure() bool {
	return m.opts.Secure
}

// Create starts a new session for the user and sets the session cookie.
func (m *Manager) Create(ctx context.Context, cookies Cookies, user Payload) error {
	if err := m.validate.Struct(user); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode payload: %w", err)
	}
	id, err := NewID()
	if err != nil {
		return err
	}

	if m.opts.SingleSession {
		if err := m.evictPrevious(ctx, user.ID); err != nil {
			return err
		}
	}
	if err := m.store.Put(ctx, id, data, m.opts.TTL); err != nil {
		return err
	}
	if m.opts.SingleSession {
		if err := m.store.Put(ctx, userIndexKey(user.ID), []byte(id), m.opts.TTL); err != nil {
			return err
		}
	}

	m.IssueCookie(cookies, id)
	return nil
}

// User resolves the session user. A missing cookie, a missing entry and a
// payload that fails validation all yield (nil, nil). Only store failures are
// returned as errors.
func (m *Manager) User(ctx context.Context, cookies Cookies) (*Payload, error) {
	id, ok := m.ID(cookies)
	if !ok {
		return nil, nil
	}
	return m.load(ctx, id)
}

// ID returns the session id carried by the cookie, if it is well formed.
func (m *Manager) ID(cookies Cookies) (string, bool) {
	id, ok := cookies.Get(m.opts.CookieName)
	if !ok || !validID(id) {
		return "", false
	}
	return id, true
}

// Refresh rewrites the session with a fresh TTL and re-issues the cookie.
// It does nothing when there is no live session.
func (m *Manager) Refresh(ctx context.Context, cookies Cookies) error {
	id, ok := m.ID(cookies)
	if !ok {
		return nil
	}
	found, err := m.refresh(ctx, id)
	if err != nil || !found {
		return err
	}
	m.IssueCookie(cookies, id)
	return nil
}

// RefreshID extends the stored session only; cookies are left untouched.
func (m *Manager) RefreshID(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	_, err := m.refresh(ctx, id)
	return err
}

// Destroy deletes the session and clears the cookie. It does nothing when
// there is no session cookie.
func (m *Manager) Destroy(ctx context.Context, cookies Cookies) error {
	id, ok := m.ID(cookies)
	if !ok {
		if _, present := cookies.Get(m.opts.CookieName); present {
			cookies.Delete(m.opts.CookieName)
		}
		return nil
	}

	var errs []error
	if m.opts.SingleSession {
		if err := m.dropIndex(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		errs = append(errs, err)
	}
	cookies.Delete(m.opts.CookieName)
	return errors.Join(errs...)
}

// IssueCookie writes the session cookie for id.
func (m *Manager) IssueCookie(cookies Cookies, id string) {
	cookies.Set(m.opts.CookieName, id, CookieOptions{
		Path:     "/",
		MaxAge:   m.opts.TTL,
		HTTPOnly: true,
		Secure:   m.opts.Secure,
		SameSite: SameSiteLax,
	})
}

func (m *Manager) load(ctx context.Context, id string) (*Payload, error) {
	data, found, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	user, err := decodePayload(m.validate, data)
	if err != nil {
		m.logger.Warn("discarding invalid session payload", slog.Any("error", err))
		return nil, nil
	}
	return user, nil
}

// refresh coalesces concurrent refreshes of the same id into one store write.
func (m *Manager) refresh(ctx context.Context, id string) (bool, error) {
	v, err, _ := m.refreshes.Do(id, func() (any, error) {
		user, err := m.load(ctx, id)
		if err != nil || user == nil {
			return false, err
		}
		data, err := json.Marshal(user)
		if err != nil {
			return false, fmt.Errorf("session: encode payload: %w", err)
		}
		if err := m.store.Put(ctx, id, data, m.opts.TTL); err != nil {
			return false, err
		}
		if m.opts.SingleSession {
			if err := m.store.Put(ctx, userIndexKey(user.ID), []byte(id), m.opts.TTL); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (m *Manager) evictPrevious(ctx context.Context, userID int64) error {
	prev, found, err := m.store.Get(ctx, userIndexKey(userID))
	if err != nil {
		return err
	}
	if !found || !validID(string(prev)) {
		return nil
	}
	return m.store.Delete(ctx, string(prev))
}

func (m *Manager) dropIndex(ctx context.Context, id string) error {
	user, err := m.load(ctx, id)
	if err != nil || user == nil {
		return err
	}
	current, found, err := m.store.Get(ctx, userIndexKey(user.ID))
	if err != nil {
		return err
	}
	if found && string(current) == id {
		return m.store.Delete(ctx, userIndexKey(user.ID))
	}
	return nil
}

// NewID returns a random 32 character base64url session id.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func userIndexKey(userID int64) string {
	return userIndexPrefix + strconv.FormatInt(userID, 10)
}
