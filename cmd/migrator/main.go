package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/fastprodman/casinobot/internal/infra/logging"
	"github.com/fastprodman/casinobot/pkg/envconf"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // registers the "postgres" driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//go:embed migrations/*.sql
var baseFS embed.FS

//go:embed test_data/*.sql
var devFS embed.FS

// seedMigrationsTable keeps seed versions apart from schema versions.
const seedMigrationsTable = "seed_migrations"

type migratorConfig struct {
	DSN      string        `env:"PG_DSN"`
	LogLevel zapcore.Level `env:"LOG_LEVEL" default:"info"`
	AppEnv   string        `env:"APP_ENV" default:"local"`
	Seed     bool          `env:"MIGRATE_SEED" default:"false"`
}

func main() {
	err := migrateAll()
	if err != nil {
		zap.L().Error("migration run failed", zap.Error(err))
		_ = zap.L().Sync()

		fmt.Fprintf(os.Stderr, "migration run failed: %v\n", err)
		os.Exit(1)
	}

	zap.L().Info("migration run finished successfully")
	_ = zap.L().Sync()
}

func migrateAll() error {
	cfg := new(migratorConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New("casinobot-migrator", cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	err = db.Ping()
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	err = runMigrations(db, &postgres.Config{}, baseFS, "migrations")
	if err != nil {
		return fmt.Errorf("base migrations failed: %w", err)
	}

	log.Info("base migrations applied")

	if cfg.Seed || cfg.AppEnv == "local" {
		err = runMigrations(db, &postgres.Config{MigrationsTable: seedMigrationsTable}, devFS, "test_data")
		if err != nil {
			return fmt.Errorf("dev seed migrations failed: %w", err)
		}

		log.Info("dev seed migrations applied", zap.String("table", seedMigrationsTable))
	}

	return nil
}

func runMigrations(db *sql.DB, pgCfg *postgres.Config, fsys embed.FS, dir string) error {
	driver, err := postgres.WithInstance(db, pgCfg)
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	return nil
}
