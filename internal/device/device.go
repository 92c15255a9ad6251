// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package device defines how the controller reaches a Tic: a Transport lists
// and opens devices, and a Handle talks to one open device. Every call is
// synchronous and returns an error instead of panicking.
package device

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

var (
	ErrUnsupported    = errors.New("operation not supported by this transport")
	ErrDeviceNotFound = errors.New("device not found")
	ErrClosed         = errors.New("device handle is closed")
	ErrNotConnected   = errors.New("not connected to a device")
)

// DeviceRef identifies a Tic found by a transport.
type DeviceRef struct {
	SerialNumber string      `json:"serial_number"`
	Product      tic.Product `json:"product"`
	// Path is the transport-specific location: a serial port name or an
	// I2C address.
	Path string `json:"path"`
}

func (r DeviceRef) String() string {
	return fmt.Sprintf("%s #%s", r.Product, r.SerialNumber)
}

// Same reports whether r and o refer to the same physical device.
func (r DeviceRef) Same(o DeviceRef) bool {
	return r.SerialNumber == o.SerialNumber && r.Product == o.Product
}

// Find returns the device in refs with the given serial number.
func Find(refs []DeviceRef, serialNumber string) (DeviceRef, bool) {
	for _, r := range refs {
		if r.SerialNumber == serialNumber {
			return r, true
		}
	}
	return DeviceRef{}, false
}

// Contains reports whether ref is present in refs.
func Contains(refs []DeviceRef, ref DeviceRef) bool {
	for _, r := range refs {
		if r.Same(ref) {
			return true
		}
	}
	return false
}

// Transport enumerates and opens Tic devices.
type Transport interface {
	ListConnectedDevices() ([]DeviceRef, error)
	Open(ref DeviceRef) (Handle, error)
}

// Handle is an open connection to one Tic.
type Handle interface {
	Device() DeviceRef

	GetSettings() (tic.Settings, error)
	SetSettings(s tic.Settings) error
	// Reinitialize makes the device load its settings and apply them.
	Reinitialize() error
	RestoreDefaults() error
	GetVariables(clearErrorsOccurred bool) (tic.Variables, error)

	ResetCommandTimeout() error
	SetTargetPosition(position int32) error
	SetTargetVelocity(velocity int32) error
	HaltAndHold() error
	HaltAndSetPosition(position int32) error
	Energize() error
	Deenergize() error
	ExitSafeStart() error
	GoHome(dir tic.HomeDirection) error
	ClearDriverError() error
	StartBootloader() error

	Close() error
}
