// Package api exposes the check-in service over HTTP.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins    []string
	ScanRatePerMinute int
	Logger            *zap.Logger
}

// NewRouter wires the middleware and routes of the HTTP API.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(Logger(log), Recovery(log))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.AllowedOrigins) == 0 || (len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	limited := RateLimit(opts.ScanRatePerMinute)
	authed := Auth(h.Sessions)

	api := r.Group("/api")
	api.GET("/health", h.Health)

	auth := api.Group("/auth")
	auth.GET("/session", h.Session)
	auth.POST("/login", limited, h.Login)
	auth.POST("/demo", limited, h.DemoLogin)
	auth.POST("/logout", authed, h.Logout)

	att := api.Group("/attendance", authed)
	att.POST("/scan", limited, h.Scan)
	att.GET("/day", h.Day)
	att.GET("/week", h.Week)
	att.GET("/history", h.History)

	admin := api.Group("/admin", authed, RequireRole(schema.RoleAdmin))
	admin.GET("/attendance", h.AdminRows)
	admin.GET("/attendance/summary", h.AdminSummary)
	admin.GET("/attendance/export", h.AdminExport)
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.UpsertUser)
	admin.POST("/users/:id/toggle", h.ToggleUser)

	return r
}
