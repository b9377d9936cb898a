// Command server runs the wish engine behind its HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/config"
	"github.com/xtding233/gacha-engine/internal/logger"
)

func main() {
	var (
		configPath string
		logPath    string
		addr       string
	)
	pflag.StringVarP(&configPath, "config", "c", "", "path to config file")
	pflag.StringVar(&logPath, "log.path", "", "output path for logs")
	pflag.StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	pflag.Parse()

	if configPath == "" {
		configPath = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if pflag.CommandLine.Changed("log.path") {
		cfg.Log.File.Path = logPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	zl, err := logger.New(cfg.Log)
	if errors.Is(err, logger.ErrNoOutput) {
		log.Fatalf("build logger: enable log.console or set log.file.path")
	}
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("server exited", zap.Error(err))
		_ = zl.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
