// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/device/sim"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

func TestSelectDevice(t *testing.T) {
	is := is.New(t)
	tr := sim.NewTransport(zerolog.Nop())

	_, err := SelectDevice(tr, "")
	is.True(errors.Is(err, device.ErrDeviceNotFound))

	tr.Add(tic.ProductT500, "00000010")
	ref, err := SelectDevice(tr, "")
	is.NoErr(err)
	is.Equal(ref.SerialNumber, "00000010")

	tr.Add(tic.ProductT825, "00000020")
	_, err = SelectDevice(tr, "")
	is.True(err != nil) // ambiguous

	ref, err = SelectDevice(tr, "00000020")
	is.NoErr(err)
	is.Equal(ref.Product, tic.ProductT825)

	_, err = SelectDevice(tr, "99")
	is.True(errors.Is(err, device.ErrDeviceNotFound))
}

func TestExportImportSettings(t *testing.T) {
	is := is.New(t)
	tr := sim.NewTransport(zerolog.Nop())
	dev := tr.Add(tic.ProductT834, "00200300")
	path := filepath.Join(t.TempDir(), "settings.yaml")

	is.NoErr(ExportSettings(tr, "", path))
	exported, err := tic.ReadSettingsFile(path)
	is.NoErr(err)
	is.Equal(exported, dev.Settings())

	exported.MaxSpeed = 2000000
	is.NoErr(tic.WriteSettingsFile(path, exported))
	is.NoErr(ImportSettings(tr, "00200300", path, zerolog.Nop()))
	is.Equal(dev.Settings().MaxSpeed, uint32(2000000))

	calls := dev.Calls()
	is.Equal(calls[len(calls)-2:], []string{sim.OpSetSettings, sim.OpReinitialize})
}

func TestImportSettingsConvertsProduct(t *testing.T) {
	is := is.New(t)
	tr := sim.NewTransport(zerolog.Nop())
	dev := tr.Add(tic.ProductT500, "00000010")
	path := filepath.Join(t.TempDir(), "settings.yaml")

	is.NoErr(tic.WriteSettingsFile(path, tic.DefaultSettings(tic.ProductT825)))
	is.NoErr(ImportSettings(tr, "", path, zerolog.Nop()))
	is.Equal(dev.Settings().Product, tic.ProductT500)
}

func TestImportSettingsMissingFile(t *testing.T) {
	is := is.New(t)
	tr := sim.NewTransport(zerolog.Nop())
	tr.Add(tic.ProductT500, "00000010")

	err := ImportSettings(tr, "", filepath.Join(t.TempDir(), "nope.yaml"), zerolog.Nop())
	is.True(errors.Is(err, os.ErrNotExist))
}
