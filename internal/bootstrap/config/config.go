package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Matching MatchingConfig `mapstructure:"matching"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifyConfig struct {
	Driver string     `mapstructure:"driver"`
	NATS   NATSConfig `mapstructure:"nats"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type MatchingConfig struct {
	CatalogFile string `mapstructure:"catalog_file"`
	WatchFile   bool   `mapstructure:"watch_file"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("notify_driver", cfg.Notify.Driver),
	)

	return cfg, nil
}

// Validate checks the fields that have no usable zero value.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}

	switch strings.ToLower(c.Cache.Driver) {
	case "", "none", "sqlite":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("cache.redis.addr is required when cache.driver = redis")
		}
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}

	switch strings.ToLower(c.Notify.Driver) {
	case "", "log":
	case "nats":
		if strings.TrimSpace(c.Notify.NATS.URL) == "" {
			return errors.New("notify.nats.url is required when notify.driver = nats")
		}
	default:
		return fmt.Errorf("unsupported notify driver %q", c.Notify.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trustlab")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/lab_validation.sqlite")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("http.addr", ":5002")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("notify.nats.subject_prefix", "trustlab.labs")
	v.SetDefault("matching.catalog_file", "")
	v.SetDefault("matching.watch_file", true)
}
