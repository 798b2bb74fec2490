// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/photobooth/internal/config"
	"codeberg.org/oliverandrich/photobooth/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, app *App) {
	e.Pre(middleware.StripTrailingSlash)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Secure())
	e.Use(corsMiddleware(cfg))
	e.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/metrics")
		},
	}))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(middleware.Locale())
	e.Use(middleware.LoadUser(app.Auth))
}

// corsMiddleware lets the web client call the API with bearer tokens.
func corsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	origins := []string{cfg.Server.FrontendURL}
	if cfg.Server.BaseURL != cfg.Server.FrontendURL {
		origins = append(origins, cfg.Server.BaseURL)
	}

	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, "Accept-Language"},
		MaxAge:       3600,
	})
}
