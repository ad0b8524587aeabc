package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"capture-broker/internal/config"
	obs "capture-broker/internal/observability"
	"capture-broker/server"
)

// main parses flags, loads configuration and runs the broker until interrupted
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr, logLevel string
	var showVersion bool

	flagSet := pflag.NewFlagSet("capture-broker", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides config and ADDR)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config and LOG_LEVEL)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("capture-broker %s (%s) %s\n", obs.Version, obs.Commit, obs.Date)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("addr", cfg.Addr).Str("version", obs.Version).Msg("starting capture broker")
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := obs.NewMetrics()
	srv := server.New(cfg, *logger, metrics)

	// Wait for interrupt signal to gracefully shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server error")
		return err
	}
	logger.Info().Msg("capture broker stopped")
	return nil
}
