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
	getPath := flag.String("get", "", "read the device settings into FILE (- for stdout)")
	setPath := flag.String("set", "", "write the settings in FILE (- for stdin) to the device")
	serialNumber := flag.String("serial", "", "serial number of the device to use")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()
	logger := logging.New(cfg.LogLevel)

	if (*getPath == "") == (*setPath == "") {
		logger.Fatal().Msg("exactly one of -get or -set is required")
	}

	tr, err := app.NewTransport(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create transport")
	}

	if *getPath != "" {
		err = app.ExportSettings(tr, *serialNumber, *getPath)
	} else {
		err = app.ImportSettings(tr, *serialNumber, *setPath, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}
