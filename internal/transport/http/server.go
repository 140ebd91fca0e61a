package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/keyroom-server/internal/announce"
	"github.com/vovakirdan/keyroom-server/internal/auth"
	"github.com/vovakirdan/keyroom-server/internal/config"
	"github.com/vovakirdan/keyroom-server/internal/core"
	"github.com/vovakirdan/keyroom-server/internal/keys"
	"github.com/vovakirdan/keyroom-server/internal/session"
)

// Services bundles the components the gateway routes to.
type Services struct {
	Hub           *core.Hub
	Keys          *keys.Service
	Sessions      *session.Manager
	Announcements *announce.Channel
	// Admin may be nil or disabled; the admin routes are then not registered.
	Admin *auth.Authorizer
	// Gatherer backs GET /metrics when metrics are enabled.
	Gatherer prometheus.Gatherer
}

// NewServer builds the HTTP server with all routes.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	cookies := newCookieJar(cfg.Session)
	h := newHandlers(svc, cookies, logger)

	router.GET("/health", healthHandler)
	router.POST("/verify", h.Verify)
	router.GET("/session", h.Session)
	router.POST("/logout", h.Logout)
	router.GET("/announcement", h.Announcement)

	if cfg.Metrics.Enabled && svc.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	if svc.Admin.Enabled() {
		admin := router.Group("/admin")
		admin.Use(AdminMiddleware(svc.Admin, logger))
		{
			admin.POST("/keys", h.IssueKey)
			admin.GET("/keys", h.ListKeys)
			admin.POST("/announcement", h.SetAnnouncement)
		}
		logger.Info().Msg("admin api enabled")
	}

	// The socket bypasses gin: its response writer refuses to hijack once
	// the upgrade headers have been written.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc.Hub, svc.Sessions, cookies, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
