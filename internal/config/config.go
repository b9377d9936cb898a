// Package config loads the server configuration from a YAML file,
// a .env file and WISH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xtding233/gacha-engine/internal/logger"
)

const EnvPrefix = "WISH"

// Store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       logger.Config   `mapstructure:"log"`
	Gacha     GachaConfig     `mapstructure:"gacha"`
	Store     StoreConfig     `mapstructure:"store"`
	Flush     FlushConfig     `mapstructure:"flush"`
	Host      HostConfig      `mapstructure:"host"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type GachaConfig struct {
	BannerFile string `mapstructure:"banner_file" validate:"required"`
	// MaxPulls caps a single open request.
	MaxPulls int           `mapstructure:"max_pulls" validate:"gte=1"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
	// Seed makes resolution deterministic when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

type StoreConfig struct {
	Kind  string      `mapstructure:"kind" validate:"oneof=file redis sqlite"`
	Path  string      `mapstructure:"path" validate:"required_unless=Kind redis"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

type FlushConfig struct {
	// Schedule is a cron spec; empty disables periodic flushes.
	Schedule string `mapstructure:"schedule"`
}

type HostConfig struct {
	InventorySize int `mapstructure:"inventory_size" validate:"gte=1"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

func setDefaults(v *viper.Viper) {
	lc := logger.DefaultConfig()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.console", lc.Console)
	v.SetDefault("log.development", lc.Development)
	v.SetDefault("log.file.path", lc.File.Path)
	v.SetDefault("log.file.max_size_mb", lc.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", lc.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", lc.File.MaxAgeDays)
	v.SetDefault("log.file.compress", lc.File.Compress)
	v.SetDefault("gacha.banner_file", "data/crates.yml")
	v.SetDefault("gacha.max_pulls", 20)
	v.SetDefault("gacha.watch", true)
	v.SetDefault("gacha.debounce", 500*time.Millisecond)
	v.SetDefault("gacha.seed", 0)
	v.SetDefault("store.kind", StoreFile)
	v.SetDefault("store.path", "data/players.yml")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "wish:")
	v.SetDefault("flush.schedule", "@every 5m")
	v.SetDefault("host.inventory_size", 36)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "wish")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Load reads .env (if present), then the YAML file at path (optional when
// empty or missing), then environment overrides such as WISH_STORE_KIND.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Store.Kind == StoreRedis && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("invalid config: store.redis.addr is required for the redis store")
	}
	return nil
}
