package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/keyroom-server/internal/core"
	"github.com/vovakirdan/keyroom-server/internal/keys"
)

// Handlers provides HTTP handlers for the REST endpoints.
type Handlers struct {
	svc     Services
	cookies cookieJar
	log     *zerolog.Logger
}

// newHandlers creates a new handlers instance.
func newHandlers(svc Services, cookies cookieJar, logger *zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, cookies: cookies, log: logger}
}

// VerifyRequest is the key redemption body.
type VerifyRequest struct {
	Key      string `json:"key"`
	Username string `json:"username"`
}

// VerifyResponse is returned by POST /verify.
type VerifyResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SessionUser is the user part of a session response.
type SessionUser struct {
	Username string `json:"username"`
}

// SessionResponse is returned by GET /session.
type SessionResponse struct {
	LoggedIn bool         `json:"loggedIn"`
	User     *SessionUser `json:"user,omitempty"`
}

// AnnouncementResponse carries the current announcement.
// UpdatedAt is absent while the default text is shown.
type AnnouncementResponse struct {
	Text      string     `json:"text"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Verify redeems a one-time key and starts a session.
// POST /verify
func (h *Handlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid verify request")
		c.JSON(http.StatusBadRequest, VerifyResponse{Message: "Invalid request"})
		return
	}

	username := strings.TrimSpace(req.Username)
	owner, err := h.svc.Keys.Redeem(c.Request.Context(), req.Key, username)
	if err != nil {
		if errors.Is(err, keys.ErrInvalidKey) {
			c.JSON(http.StatusBadRequest, VerifyResponse{Message: "Invalid key"})
			return
		}
		h.log.Error().Err(err).Msg("failed to redeem key")
		c.JSON(http.StatusInternalServerError, VerifyResponse{Message: "Internal error"})
		return
	}

	if username == "" {
		username = strings.TrimSpace(owner)
	}
	if username == "" {
		username = core.DefaultUsername
	}

	s, err := h.svc.Sessions.Start(username)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to start session")
		c.JSON(http.StatusInternalServerError, VerifyResponse{Message: "Internal error"})
		return
	}
	h.cookies.set(c.Writer, s)

	h.log.Info().Str("username", username).Msg("session started")
	c.JSON(http.StatusOK, VerifyResponse{Success: true, Username: username})
}

// Session reports whether the request carries a live session.
// GET /session
func (h *Handlers) Session(c *gin.Context) {
	s, ok := h.cookies.lookup(h.svc.Sessions, c.Request)
	if !ok {
		c.JSON(http.StatusOK, SessionResponse{LoggedIn: false})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{LoggedIn: true, User: &SessionUser{Username: s.Username}})
}

// Logout ends the current session and clears the cookie.
// POST /logout
func (h *Handlers) Logout(c *gin.Context) {
	if id := h.cookies.id(c.Request); id != "" {
		h.svc.Sessions.End(id)
	}
	h.cookies.clear(c.Writer)
	c.JSON(http.StatusOK, VerifyResponse{Success: true})
}

// Announcement returns the current announcement text.
// GET /announcement
func (h *Handlers) Announcement(c *gin.Context) {
	a, ok := h.svc.Announcements.Latest()
	if !ok {
		c.JSON(http.StatusOK, AnnouncementResponse{Text: h.svc.Announcements.Current()})
		return
	}
	c.JSON(http.StatusOK, AnnouncementResponse{Text: a.Text, UpdatedAt: &a.UpdatedAt})
}
