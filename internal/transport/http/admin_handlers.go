package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// IssueKeyRequest asks for a new one-time key.
type IssueKeyRequest struct {
	Owner string `json:"owner"`
}

// IssueKeyResponse carries a freshly issued key.
type IssueKeyResponse struct {
	Key   string `json:"key"`
	Owner string `json:"owner"`
}

// KeyInfo describes one key in the admin listing.
type KeyInfo struct {
	Code       string     `json:"code"`
	Owner      string     `json:"owner"`
	Used       bool       `json:"used"`
	RedeemedBy string     `json:"redeemedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}

// SetAnnouncementRequest replaces the current announcement.
type SetAnnouncementRequest struct {
	Text string `json:"text"`
}

// IssueKey creates a key for an owner.
// POST /admin/keys
func (h *Handlers) IssueKey(c *gin.Context) {
	var req IssueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	code, err := h.svc.Keys.Issue(c.Request.Context(), req.Owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", req.Owner).Msg("failed to issue key")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, IssueKeyResponse{Key: code, Owner: strings.TrimSpace(req.Owner)})
}

// ListKeys returns every key, oldest first.
// GET /admin/keys
func (h *Handlers) ListKeys(c *gin.Context) {
	list := h.svc.Keys.List()
	out := make([]KeyInfo, 0, len(list))
	for _, k := range list {
		out = append(out, KeyInfo{
			Code:       k.Code,
			Owner:      k.Owner,
			Used:       k.Used,
			RedeemedBy: k.RedeemedBy,
			CreatedAt:  k.CreatedAt,
			RedeemedAt: k.RedeemedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// SetAnnouncement persists and broadcasts a new announcement.
// POST /admin/announcement
func (h *Handlers) SetAnnouncement(c *gin.Context) {
	var req SetAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	}

	if err := h.svc.Announcements.Set(c.Request.Context(), text); err != nil {
		h.log.Error().Err(err).Msg("failed to set announcement")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, AnnouncementResponse{Text: text})
}
