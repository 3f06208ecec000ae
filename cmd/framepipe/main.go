package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mpetters/framepipe/internal/channel"
	"github.com/mpetters/framepipe/internal/logging"
	"github.com/mpetters/framepipe/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to framepipe config file (toml)")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.Logger()

	cfg := defaultRuntimeConfig()
	if *configPath != "" {
		loaded, err := loadRuntimeConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "framepipe: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if cfg.LogLevel != "" {
		logging.SetLevel(cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DebugListenAddr != "" {
		debug := observability.NewDebugServer(cfg.DebugListenAddr, logger)
		go func() {
			if err := debug.Run(ctx); err != nil {
				logger.Warn().Err(err).Msg("debug server stopped")
			}
		}()
	}

	cfg.Channel.Logger = logger
	ch := channel.New(os.Stdin, os.Stdout, channel.EchoHandler, cfg.Channel)

	logger.Info().Msg("running")
	if err := ch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "framepipe: %v\n", err)
		os.Exit(1)
	}
}
