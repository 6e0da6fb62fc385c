package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trustlab/internal/bootstrap/config"
	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
	"trustlab/internal/infrastructure/catalog"
	"trustlab/internal/infrastructure/persistence/schema"
	"trustlab/internal/infrastructure/persistence/sqlite/model"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
	// Catalog is nil unless matching.catalog_file is set with watch_file enabled.
	Catalog *catalog.Watcher
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	models := append(model.All(), &schema.ProjectMeta{})
	if err := a.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	if err := a.SetMeta(ctx, schema.MetaSchemaVersion, schema.CurrentSchemaVersion); err != nil {
		return err
	}

	logging.Info(logCtx, "schema migration completed", slog.String("schema_version", schema.CurrentSchemaVersion))
	return nil
}

// SetMeta upserts one project_meta entry.
func (a *App) SetMeta(ctx context.Context, key string, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("meta key is required")
	}
	row := schema.ProjectMeta{Key: key, Value: value}
	err := a.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errs.Wrapf(err, "set project meta %q", key)
	}
	return nil
}

// Meta returns the stored value of key and whether it exists.
func (a *App) Meta(ctx context.Context, key string) (string, bool, error) {
	var row schema.ProjectMeta
	err := a.DB.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrapf(err, "get project meta %q", key)
	}
	return row.Value, true, nil
}
