package session

import (
	"net/http"
	"time"
)

// SameSite mirrors the cookie SameSite attribute without tying callers to net/http.
type SameSite int

// SameSite modes.
const (
	SameSiteLax SameSite = iota
	SameSiteStrict
	SameSiteNone
)

// CookieOptions are the attributes applied when a cookie is written.
type CookieOptions struct {
	Path     string
	MaxAge   time.Duration
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
}

// Cookies is the cookie surface the session manager needs from a web framework.
type Cookies interface {
	Get(name string) (string, bool)
	Set(name, value string, opts CookieOptions)
	Delete(name string)
}

// HTTPCookies adapts a net/http request and response pair.
type HTTPCookies struct {
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]string
}

// NewHTTPCookies returns a Cookies adapter reading from r and writing to w.
func NewHTTPCookies(w http.ResponseWriter, r *http.Request) *HTTPCookies {
	return &HTTPCookies{r: r, w: w, pending: make(map[string]string)}
}

// Get returns a value written during this request first, then the request cookie.
func (c *HTTPCookies) Get(name string) (string, bool) {
	if value, ok := c.pending[name]; ok {
		return value, value != ""
	}
	cookie, err := c.r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set writes a Set-Cookie header.
func (c *HTTPCookies) Set(name, value string, opts CookieOptions) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: httpSameSite(opts.SameSite),
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if opts.MaxAge > 0 {
		cookie.MaxAge = int(opts.MaxAge / time.Second)
		cookie.Expires = time.Now().Add(opts.MaxAge).UTC()
	}
	http.SetCookie(c.w, cookie)
	c.pending[name] = value
}

// Delete expires the cookie in the browser.
func (c *HTTPCookies) Delete(name string) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.pending[name] = ""
}

// RequestCookies is a read-only adapter for code paths without a response writer.
type RequestCookies struct {
	R *http.Request
}

// Get implements Cookies.
func (c RequestCookies) Get(name string) (string, bool) {
	cookie, err := c.R.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set is a no-op.
func (RequestCookies) Set(string, string, CookieOptions) {}

// Delete is a no-op.
func (RequestCookies) Delete(string) {}

func httpSameSite(s SameSite) http.SameSite {
	switch s {
	case SameSiteStrict:
		return http.SameSiteStrictMode
	case SameSiteNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
