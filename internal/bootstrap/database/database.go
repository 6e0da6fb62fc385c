package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trustlab/internal/bootstrap/config"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
)

func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		db, err := OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", cfg.DSN))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteBusyTimeout bounds how long a statement waits on a lock held by
// another process (a CLI command next to a running server).
const sqliteBusyTimeout = 5 * time.Second

// OpenSQLite opens dsn with a single pooled connection so that writers
// queue on the pool instead of failing with SQLITE_BUSY.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite db")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Wrap(err, "get sql db")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return nil, errs.Wrap(err, "enable foreign keys")
	}
	if err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d;", sqliteBusyTimeout.Milliseconds())).Error; err != nil {
		return nil, errs.Wrap(err, "set busy timeout")
	}
	return db, nil
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = strings.TrimPrefix(candidate, "file:")
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Debug(ctx, "sqlite directory ensured", slog.String("dir", dir))
	return nil
}
