package http

import (
	stdhttp "net/http"
	"time"

	"github.com/vovakirdan/keyroom-server/internal/config"
	"github.com/vovakirdan/keyroom-server/internal/session"
)

// cookieJar binds session ids to the browser cookie.
type cookieJar struct {
	name   string
	secure bool
}

func newCookieJar(cfg config.SessionConfig) cookieJar {
	return cookieJar{name: cfg.CookieName, secure: cfg.CookieSecure}
}

func (j cookieJar) set(w stdhttp.ResponseWriter, s session.Session) {
	stdhttp.SetCookie(w, &stdhttp.Cookie{
		Name:     j.name,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: stdhttp.SameSiteLaxMode,
	})
}

func (j cookieJar) clear(w stdhttp.ResponseWriter) {
	stdhttp.SetCookie(w, &stdhttp.Cookie{
		Name:     j.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: stdhttp.SameSiteLaxMode,
	})
}

// id returns the session id carried by r, or "".
func (j cookieJar) id(r *stdhttp.Request) string {
	c, err := r.Cookie(j.name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (j cookieJar) lookup(m *session.Manager, r *stdhttp.Request) (session.Session, bool) {
	return m.Lookup(j.id(r))
}
