// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the services into the HTTP API and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/config"
	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/handlers"
	"codeberg.org/oliverandrich/photobooth/internal/i18n"
	"codeberg.org/oliverandrich/photobooth/internal/metrics"
	"codeberg.org/oliverandrich/photobooth/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"frontend_url", cfg.Server.FrontendURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	app, err := NewApp(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer app.Close()

	e := NewEcho(cfg, app)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go app.runSweeper(sweepCtx, cfg.Share.SweepInterval)

	return startWithGracefulShutdown(e, cfg)
}

// LoadConfig builds and validates the configuration, sets up logging and
// loads the translations.
func LoadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}
	return cfg, nil
}

// NewEcho creates the Echo instance with middleware and routes.
func NewEcho(cfg *config.Config, app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg, app)
	setupRoutes(e, app)

	return e
}

func setupRoutes(e *echo.Echo, app *App) {
	h := handlers.New(handlers.Deps{
		Repo:        app.Repo,
		Auth:        app.Auth,
		Shares:      app.Shares,
		Photos:      app.Photos,
		Framers:     app.Framers,
		Providers:   app.Providers,
		States:      app.States,
		FrontendURL: app.Config.Server.FrontendURL,
	})
	limited := app.Limiter.Middleware()

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(app.Registry)))

	// Auth
	a := e.Group("/auth")
	a.POST("/register", h.Register, limited)
	a.POST("/login", h.Login, limited)
	a.POST("/verify-otp", h.VerifyOTP, limited)
	a.POST("/resend-otp", h.ResendOTP, limited)
	a.GET("/verify-email", h.VerifyEmail)
	a.GET("/me", h.Me, middleware.RequireAuth)
	a.GET("/:provider", h.OAuthStart)
	a.GET("/:provider/callback", h.OAuthCallback)

	// Photos
	p := e.Group("/api/photos")
	p.POST("/upload", h.UploadPhoto, middleware.RequireAuth)
	p.GET("", h.ListPhotos, middleware.RequireAuth)
	p.GET("/:id", h.GetPhoto)
	p.DELETE("/:id", h.DeletePhoto, middleware.RequireAuth)
	p.POST("/:id/share", h.CreateShare, middleware.RequireAuth)
	p.GET("/:id/share", h.GetShare, middleware.RequireAuth)

	e.GET("/share/:token", h.SharedPhoto)

	// Frames
	e.GET("/api/framers", h.ListFramers)
	e.GET("/api/framers/:id", h.GetFramer)
	fc := e.Group("/api/framer-contributions", middleware.RequireAuth)
	fc.POST("", h.SubmitFramer)
	fc.GET("/me", h.MyFramerContributions)

	// Admin
	admin := e.Group("/api/admin", middleware.RequireAdmin)
	admin.GET("/users", h.AdminListUsers)
	admin.PUT("/users/:id/role", h.AdminUpdateRole)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
	admin.GET("/photos", h.AdminListPhotos)
	admin.DELETE("/photos/:id", h.DeletePhoto)
	admin.GET("/framers", h.ListFramers)
	admin.POST("/framers", h.AdminCreateFramer)
	admin.POST("/framers/from-url", h.AdminCreateFramerFromURL)
	admin.PATCH("/framers/:id", h.AdminUpdateFramer)
	admin.DELETE("/framers/:id", h.AdminDeleteFramer)
	admin.GET("/framer-contributions", h.AdminListFramerContributions)
	admin.PATCH("/framer-contributions/:id/accept", h.AdminAcceptFramerContribution)
	admin.PATCH("/framer-contributions/:id/reject", h.AdminRejectFramerContribution)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
