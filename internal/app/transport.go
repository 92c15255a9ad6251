// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/config"
	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/device/i2ctic"
	"github.com/relabs-tech/tic_controller/internal/device/serialtic"
	"github.com/relabs-tech/tic_controller/internal/device/sim"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// SimSerialNumber is the serial number of the device the sim transport
// starts with.
const SimSerialNumber = "00000001"

// NewTransport builds the transport selected by cfg.
func NewTransport(cfg *config.Config, log zerolog.Logger) (device.Transport, error) {
	product, err := tic.ParseProduct(cfg.TicVariant)
	if err != nil {
		return nil, fmt.Errorf("TIC_VARIANT: %w", err)
	}

	switch cfg.Transport {
	case "serial":
		return serialtic.NewTransport(log, serialtic.Options{
			Port:         cfg.SerialPort,
			Product:      product,
			BaudRate:     uint(cfg.SerialBaudRate),
			DeviceNumber: cfg.SerialDeviceNumber,
		}), nil
	case "i2c":
		tr, err := i2ctic.NewTransport(log, i2ctic.Options{
			Bus:       cfg.I2CBus,
			Addresses: cfg.I2CAddresses,
			Product:   product,
		})
		if err != nil {
			return nil, err
		}
		return tr, nil
	case "sim":
		tr := sim.NewTransport(log)
		tr.Add(product, SimSerialNumber)
		return tr, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}
