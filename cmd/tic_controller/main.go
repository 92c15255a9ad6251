// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/tic_controller/internal/app"
	"github.com/relabs-tech/tic_controller/internal/config"
	"github.com/relabs-tech/tic_controller/internal/logging"
)

func main() {
	configPath := flag.String("config", "tic_config.txt", "KEY=VALUE configuration file; empty for defaults")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()

	logger := logging.New(cfg.LogLevel)
	log.Logger = logger
	logger.Info().Str("transport", cfg.Transport).Msg("starting tic controller")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewContextWithLogger(ctx, logger)

	if err := app.RunController(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}
