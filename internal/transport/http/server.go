// Package http provides the HTTP server for the segmenter.
package http

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/segmenter/internal/config"
	"github.com/xiaot623/gogo/segmenter/internal/hub"
	"github.com/xiaot623/gogo/segmenter/internal/service"
)

// NewServer creates and configures the HTTP server.
// It serves uploads, artifact lookup, the static output mount and the event
// stream.
func NewServer(cfg *config.Config, svc *service.Service, h *hub.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		ExposeHeaders: []string{HeaderRunID, HeaderFileURL},
	}))
	if cfg.MaxUploadBytes > 0 {
		// Leave headroom for multipart framing around the file itself.
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes+1<<20, 10) + "B"))
	}

	// Static output mount
	e.Static(cfg.StaticPrefix, cfg.OutputDir)

	// Handlers
	NewHandler(svc).RegisterRoutes(e)
	NewStreamHandler(cfg, h).RegisterRoutes(e)

	return e
}
