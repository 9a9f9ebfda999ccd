package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type flags struct {
	cmd     string
	dir     string
	name    string
	version string
}

// schemaCommand runs against a live Postgres connection.
type schemaCommand func(ctx context.Context, sqlDB *sql.DB, f flags) error

var schemaCommands = map[string]schemaCommand{
	"up":     func(ctx context.Context, sqlDB *sql.DB, f flags) error { return migrate.Run(ctx, sqlDB, f.dir, "up") },
	"down":   func(ctx context.Context, sqlDB *sql.DB, f flags) error { return migrate.Run(ctx, sqlDB, f.dir, "down") },
	"status": func(ctx context.Context, sqlDB *sql.DB, f flags) error { return migrate.Run(ctx, sqlDB, f.dir, "status") },
	"version": func(ctx context.Context, sqlDB *sql.DB, f flags) error {
		if f.version == "" {
			return fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, f.dir, f.version)
	},
}

func main() {
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&f.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&f.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&f.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	// Offline commands touch only the filesystem.
	switch f.cmd {
	case "create":
		if f.name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(f.dir, f.name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(f.dir); err != nil {
			fail("migration validation failed:\n%v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	run, ok := schemaCommands[f.cmd]
	if !ok {
		fail("unknown -cmd value %q", f.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": f.cmd, "dir": f.dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	// Goose files are Postgres SQL; a sqlite schema comes from the models.
	if cfg.DB.IsSQLite() {
		if f.cmd != "up" {
			fail("-cmd=%s is not supported for the sqlite driver", f.cmd)
		}
		if err := migrate.AutoMigrateModels(dbClient.DB().WithContext(ctx)); err != nil {
			fail("sqlite auto-migrate: %v", err)
		}
		logg.Info(ctx, "sqlite schema migrated from models")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "sql handle unavailable", err)
		os.Exit(1)
	}
	if err := run(ctx, sqlDB, f); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
