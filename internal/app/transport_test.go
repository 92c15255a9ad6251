// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/config"
	"github.com/relabs-tech/tic_controller/internal/device/serialtic"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

func TestNewTransport(t *testing.T) {
	is := is.New(t)

	cfg := config.Default()
	cfg.Transport = "sim"
	cfg.TicVariant = "T249"
	tr, err := NewTransport(cfg, zerolog.Nop())
	is.NoErr(err)
	refs, err := tr.ListConnectedDevices()
	is.NoErr(err)
	is.Equal(len(refs), 1)
	is.Equal(refs[0].Product, tic.ProductT249)
	is.Equal(refs[0].SerialNumber, SimSerialNumber)

	cfg.Transport = "serial"
	tr, err = NewTransport(cfg, zerolog.Nop())
	is.NoErr(err)
	_, ok := tr.(*serialtic.Transport)
	is.True(ok)

	cfg.TicVariant = "T9000"
	_, err = NewTransport(cfg, zerolog.Nop())
	is.True(err != nil)
}
