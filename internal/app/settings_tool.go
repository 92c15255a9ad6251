// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// SelectDevice picks the device with serialNumber, or the only device on the
// transport when serialNumber is empty.
func SelectDevice(tr device.Transport, serialNumber string) (device.DeviceRef, error) {
	refs, err := tr.ListConnectedDevices()
	if err != nil {
		return device.DeviceRef{}, fmt.Errorf("listing devices: %w", err)
	}
	if serialNumber != "" {
		ref, ok := device.Find(refs, serialNumber)
		if !ok {
			return device.DeviceRef{}, fmt.Errorf("%q: %w", serialNumber, device.ErrDeviceNotFound)
		}
		return ref, nil
	}
	switch len(refs) {
	case 0:
		return device.DeviceRef{}, device.ErrDeviceNotFound
	case 1:
		return refs[0], nil
	}
	return device.DeviceRef{}, fmt.Errorf("%d devices found, select one by serial number", len(refs))
}

// ExportSettings reads the settings of the selected device into path
// ("-" for stdout).
func ExportSettings(tr device.Transport, serialNumber, path string) error {
	h, err := openSelected(tr, serialNumber)
	if err != nil {
		return err
	}
	defer h.Close()

	s, err := h.GetSettings()
	if err != nil {
		return fmt.Errorf("reading settings from %s: %w", h.Device(), err)
	}
	return tic.WriteSettingsFile(path, s)
}

// ImportSettings loads path ("-" for stdin), fixes it for the selected
// device, writes it and reinitializes the device. Fix warnings are logged.
func ImportSettings(tr device.Transport, serialNumber, path string, log zerolog.Logger) error {
	loaded, err := tic.ReadSettingsFile(path)
	if err != nil {
		return err
	}

	h, err := openSelected(tr, serialNumber)
	if err != nil {
		return err
	}
	defer h.Close()

	fixed, warnings := loaded.Fix(h.Device().Product)
	if warnings != "" {
		log.Warn().Msg(warnings)
	}
	if err := h.SetSettings(fixed); err != nil {
		return fmt.Errorf("writing settings to %s: %w", h.Device(), err)
	}
	if err := h.Reinitialize(); err != nil {
		return fmt.Errorf("reinitializing %s: %w", h.Device(), err)
	}
	log.Info().Str("device", h.Device().String()).Msg("settings applied")
	return nil
}

func openSelected(tr device.Transport, serialNumber string) (device.Handle, error) {
	ref, err := SelectDevice(tr, serialNumber)
	if err != nil {
		return nil, err
	}
	h, err := tr.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", ref, err)
	}
	return h, nil
}
