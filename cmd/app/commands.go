// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/server"
	"github.com/urfave/cli/v3"
)

var errUsage = errors.New("invalid arguments")

func migrateCommand() *cli.Command {
	step := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(_ context.Context, cmd *cli.Command) error {
				cfg, err := server.LoadConfig(cmd)
				if err != nil {
					return err
				}
				db, err := database.Connect(cfg.Database.DSN)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer func() { _ = db.Close() }()

				return migrate(db.DB, name, cmd.Root().Writer)
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			step("up", "Apply all pending migrations"),
			step("down", "Roll back the last migration"),
			step("reset", "Roll back all migrations"),
		},
	}
}

// migrate runs one migration action and prints the resulting version.
func migrate(db *sql.DB, action string, w io.Writer) error {
	var err error
	switch action {
	case "up":
		err = database.RunMigrations(db)
	case "down":
		err = database.MigrateDown(db)
	case "reset":
		err = database.MigrateReset(db)
	default:
		return fmt.Errorf("%w: unknown migrate action %q", errUsage, action)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	version, err := database.MigrationVersion(db)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "schema version: %d\n", version)
	return nil
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete expired share links and stale verification challenges",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(app *server.App) error {
				res, err := app.Sweep(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.Root().Writer, "deleted %d share links, %d challenges\n",
					res.ShareTokens, res.Challenges)
				return nil
			})
		},
	}
}

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:      "role",
				Usage:     "Set the role of an account",
				ArgsUsage: "<email> <user|admin>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return fmt.Errorf("%w: expected <email> <role>", errUsage)
					}
					return withApp(ctx, cmd, func(app *server.App) error {
						user, err := setRole(ctx, app.Repo, cmd.Args().Get(0), models.Role(cmd.Args().Get(1)))
						if err != nil {
							return err
						}
						_, _ = fmt.Fprintf(cmd.Root().Writer, "%s is now %s\n", user.Email, user.Role)
						return nil
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Delete an account and its photos",
				ArgsUsage: "<email>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("%w: expected <email>", errUsage)
					}
					return withApp(ctx, cmd, func(app *server.App) error {
						user, err := app.Repo.GetUserByEmail(ctx, cmd.Args().First())
						if err != nil {
							return err
						}
						n, err := app.Photos.RemoveUser(ctx, user.ID)
						if err != nil {
							return err
						}
						_, _ = fmt.Fprintf(cmd.Root().Writer, "removed %s and %d photos\n", user.Email, n)
						return nil
					})
				},
			},
		},
	}
}

// setRole assigns role to the account registered under email.
func setRole(ctx context.Context, repo *repository.Repository, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", errUsage, role)
	}
	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", email, err)
	}
	if err := repo.UpdateUserRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	slog.InfoContext(ctx, "user_role_updated", "user_id", user.ID, "role", role)
	return user, nil
}

// withApp opens the configured database and runs fn with the wired services.
func withApp(ctx context.Context, cmd *cli.Command, fn func(app *server.App) error) error {
	cfg, err := server.LoadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	app, err := server.NewApp(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}
