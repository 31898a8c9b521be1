// Command migrate manages the customer schema: versioned SQL migrations for
// the postgres store and the index set of the MongoDB collection.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence/mongodb"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func main() {
	cmd := &cli.Command{
		Name:  "migrate",
		Usage: "Manage the CRM customer schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			sqlCommand(),
			{
				Name:  "mongo-indexes",
				Usage: "Create the customer collection indexes",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withEnv(cmd, func(cfg *config.Config, log *zap.Logger) error {
						return runMongoIndexes(ctx, cfg, log)
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sqlCommand() *cli.Command {
	pathFlag := &cli.StringFlag{
		Name:  "path",
		Usage: "Migrations directory; the embedded set is used when empty",
	}

	return &cli.Command{
		Name:  "sql",
		Usage: "Run postgres schema migrations",
		Flags: []cli.Flag{pathFlag},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: migratorAction(func(m *migration.Migrator, _ cli.Args) error {
					return m.Up()
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back all migrations",
				Action: migratorAction(func(m *migration.Migrator, _ cli.Args) error {
					return m.Down()
				}),
			},
			{
				Name:      "steps",
				Usage:     "Apply n migrations; negative n rolls back",
				ArgsUsage: "<n>",
				Action: migratorAction(func(m *migration.Migrator, args cli.Args) error {
					n, err := strconv.Atoi(args.First())
					if err != nil {
						return fmt.Errorf("invalid step count %q", args.First())
					}
					return m.Steps(n)
				}),
			},
			{
				Name:      "goto",
				Usage:     "Migrate up or down to a version",
				ArgsUsage: "<version>",
				Action: migratorAction(func(m *migration.Migrator, args cli.Args) error {
					v, err := strconv.ParseUint(args.First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid version %q", args.First())
					}
					return m.GoTo(uint(v))
				}),
			},
			{
				Name:      "force",
				Usage:     "Set the version without running migrations, clearing a dirty state",
				ArgsUsage: "<version>",
				Action: migratorAction(func(m *migration.Migrator, args cli.Args) error {
					v, err := strconv.Atoi(args.First())
					if err != nil {
						return fmt.Errorf("invalid version %q", args.First())
					}
					return m.Force(v)
				}),
			},
			{
				Name:  "version",
				Usage: "Print the applied version",
				Action: migratorAction(func(m *migration.Migrator, _ cli.Args) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Printf("version: %d, dirty: %t\n", version, dirty)
					return nil
				}),
			},
			{
				Name:      "create",
				Usage:     "Write an empty up/down pair to the migrations directory",
				ArgsUsage: "<name> [description]",
				Action: func(_ context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return fmt.Errorf("migration name required")
					}
					mf, err := migration.CreateMigration(migrationsDir(cmd.String("path")), name, cmd.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Printf("created %s\n        %s\n", mf.UpPath, mf.DownPath)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List the migrations on disk",
				Action: func(_ context.Context, cmd *cli.Command) error {
					files, err := migration.ListMigrations(migrationsDir(cmd.String("path")))
					if err != nil {
						return err
					}
					if len(files) == 0 {
						fmt.Println("no migrations found")
						return nil
					}
					for _, f := range files {
						fmt.Printf("  %06d  %s\n", f.Version, f.Name)
					}
					return nil
				},
			},
		},
	}
}

// migratorAction opens the postgres database and a Migrator around fn
func migratorAction(fn func(m *migration.Migrator, args cli.Args) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return withEnv(cmd, func(cfg *config.Config, log *zap.Logger) error {
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("sql migrations need database.driver=postgres, got %q", cfg.Database.Driver)
			}

			db, err := sql.Open("postgres", cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = db.Close() }()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}

			var m *migration.Migrator
			if path := cmd.String("path"); path != "" {
				m, err = migration.NewFromPath(db, migrationsDir(path), log)
			} else {
				m, err = migration.New(db, log)
			}
			if err != nil {
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					log.Warn("Failed to close migrator", zap.Error(err))
				}
			}()

			return fn(m, cmd.Args())
		})
	}
}

// withEnv loads configuration and a console logger for one command
func withEnv(cmd *cli.Command, fn func(cfg *config.Config, log *zap.Logger) error) error {
	log, closeLog, err := logger.New(&logger.Config{
		Level:      cmd.String("log-level"),
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		logger.Sync(log)
		_ = closeLog()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Info("Migration CLI started", zap.String("command", cmd.FullName()))
	return fn(cfg, log)
}

func runMongoIndexes(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	client, err := mongodb.NewClient(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(context.Background()) }()

	names, err := mongodb.EnsureIndexes(ctx, client.Customers())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println("  -", name)
	}
	log.Info("MongoDB indexes ensured", zap.Int("count", len(names)))
	return nil
}

func migrationsDir(path string) string {
	if path == "" {
		path = defaultMigrationsPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
