// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

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

	if cfg.MQTTBroker == "" {
		logger.Fatal().Msg("MQTT_BROKER is required for the console")
	}
	logger.Info().Msg("starting tic console (MQTT subscriber)")

	if err := app.RunConsoleMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, cfg.TopicStatus, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}
