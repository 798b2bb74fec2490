// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StripTrailingSlash redirects requests with trailing slashes to the canonical
// URL without. Register it with Echo#Pre so it runs before routing.
func StripTrailingSlash(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		path := req.URL.Path
		if path == "/" || !strings.HasSuffix(path, "/") {
			return next(c)
		}

		target := strings.TrimRight(path, "/")
		if target == "" {
			target = "/"
		}
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}

		// 308 keeps the method and body of non-GET requests.
		code := http.StatusPermanentRedirect
		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			code = http.StatusMovedPermanently
		}
		return c.Redirect(code, target)
	}
}
