// Package logger builds the process-wide zap logger.
package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var ErrNoOutput = errors.New("logger: no output enabled")

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// FileConfig configures size-based rotation of the log file.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Config struct {
	Level       string     `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format      string     `mapstructure:"format" validate:"omitempty,oneof=json console"`
	Console     bool       `mapstructure:"console"`
	File        FileConfig `mapstructure:"file"`
	Development bool       `mapstructure:"development"`
}

func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  FormatConsole,
		Console: true,
		File: FileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// New builds a logger writing to stdout and/or a rotated file.
func New(cfg Config) (*zap.Logger, error) {
	return build(cfg, zapcore.AddSync(os.Stdout))
}

func build(cfg Config, console zapcore.WriteSyncer) (*zap.Logger, error) {
	writers := make([]zapcore.WriteSyncer, 0, 2)
	if cfg.Console {
		writers = append(writers, console)
	}
	if cfg.File.Path != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
			LocalTime:  true,
		}))
	}
	if len(writers) == 0 {
		return nil, ErrNoOutput
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	enc := encoderConfig(cfg.Development)
	var encoder zapcore.Encoder
	switch cfg.Format {
	case FormatConsole:
		encoder = zapcore.NewConsoleEncoder(enc)
	default:
		encoder = zapcore.NewJSONEncoder(enc)
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
	c := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if dev {
		c.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return c
}

// ParseLevel maps a level name to zap's level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logger: unknown level %q", s)
	}
}
