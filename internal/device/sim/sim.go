// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim provides an in-memory Tic used for tests and for running the
// controller without hardware.
package sim

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// Operation names accepted by Device.Fail.
const (
	OpOpen            = "open"
	OpGetSettings     = "get_settings"
	OpSetSettings     = "set_settings"
	OpReinitialize    = "reinitialize"
	OpRestoreDefaults = "restore_defaults"
	OpGetVariables    = "get_variables"
	OpCommand         = "command"
)

// Transport is a simulated bus holding any number of Tics.
type Transport struct {
	mu      sync.Mutex
	log     zerolog.Logger
	devices []*Device
	listErr error
}

func NewTransport(log zerolog.Logger) *Transport {
	return &Transport{log: log.With().Str("transport", "sim").Logger()}
}

// Add plugs in a new simulated device.
func (t *Transport) Add(product tic.Product, serialNumber string) *Device {
	d := newDevice(t, device.DeviceRef{
		SerialNumber: serialNumber,
		Product:      product,
		Path:         "sim:" + serialNumber,
	})
	t.mu.Lock()
	t.devices = append(t.devices, d)
	t.mu.Unlock()
	t.log.Debug().Str("serial", serialNumber).Msg("device plugged in")
	return d
}

// Remove unplugs the device with the given serial number.
func (t *Transport) Remove(serialNumber string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, d := range t.devices {
		if d.ref.SerialNumber == serialNumber {
			t.devices = append(t.devices[:i], t.devices[i+1:]...)
			t.log.Debug().Str("serial", serialNumber).Msg("device unplugged")
			return
		}
	}
}

// Device returns the simulated device with the given serial number.
func (t *Transport) Device(serialNumber string) *Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range t.devices {
		if d.ref.SerialNumber == serialNumber {
			return d
		}
	}
	return nil
}

// FailList makes ListConnectedDevices return err until called with nil.
func (t *Transport) FailList(err error) {
	t.mu.Lock()
	t.listErr = err
	t.mu.Unlock()
}

func (t *Transport) ListConnectedDevices() ([]device.DeviceRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listErr != nil {
		return nil, t.listErr
	}
	refs := make([]device.DeviceRef, 0, len(t.devices))
	for _, d := range t.devices {
		refs = append(refs, d.ref)
	}
	return refs, nil
}

func (t *Transport) Open(ref device.DeviceRef) (device.Handle, error) {
	d := t.Device(ref.SerialNumber)
	if d == nil {
		return nil, fmt.Errorf("%s: %w", ref, device.ErrDeviceNotFound)
	}
	if err := d.check(OpOpen); err != nil {
		return nil, err
	}
	return &handle{dev: d}, nil
}

// Device is the simulated hardware. Its state persists across handles.
type Device struct {
	mu        sync.Mutex
	transport *Transport
	ref       device.DeviceRef
	eeprom    tic.Settings
	vars      tic.Variables
	input     uint16
	queued    []uint16
	homing    int
	failures  map[string]error
	calls     []string
}

func newDevice(t *Transport, ref device.DeviceRef) *Device {
	d := &Device{
		transport: t,
		ref:       ref,
		eeprom:    tic.DefaultSettings(ref.Product),
		input:     2048,
		failures:  map[string]error{},
	}
	d.applySettings()
	d.vars.Energized = true
	d.vars.OperationState = tic.OperationNormal
	d.vars.VinVoltage = 12000
	return d
}

// Ref returns the reference the transport lists for this device.
func (d *Device) Ref() device.DeviceRef { return d.ref }

// Fail makes every later call of op return err. A nil err clears it.
func (d *Device) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Calls returns the names of the handle methods invoked so far.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Settings returns the settings stored on the device.
func (d *Device) Settings() tic.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eeprom
}

// SetStoredSettings replaces the stored settings without going through a handle.
func (d *Device) SetStoredSettings(s tic.Settings) {
	d.mu.Lock()
	d.eeprom = s
	d.applySettings()
	d.mu.Unlock()
}

// SetInput sets the reading reported once the queued inputs run out.
func (d *Device) SetInput(v uint16) {
	d.mu.Lock()
	d.input = v
	d.mu.Unlock()
}

// QueueInputs queues readings reported by successive variable reads.
func (d *Device) QueueInputs(vs ...uint16) {
	d.mu.Lock()
	d.queued = append(d.queued, vs...)
	d.mu.Unlock()
}

// SetErrors replaces the error status register. New errors are also
// recorded as having occurred.
func (d *Device) SetErrors(kinds ...tic.ErrorKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mask := tic.ErrorMask(kinds...)
	d.vars.ErrorStatus = uint16(mask)
	d.vars.ErrorsOccurred |= mask
	d.updateEnergized()
}

// SetLimits sets the limit switch flags.
func (d *Device) SetLimits(forward, reverse bool) {
	d.mu.Lock()
	d.vars.ForwardLimitActive = forward
	d.vars.ReverseLimitActive = reverse
	d.mu.Unlock()
}

// SetMotion sets the planning mode and current velocity.
func (d *Device) SetMotion(mode tic.PlanningMode, velocity int32) {
	d.mu.Lock()
	d.vars.PlanningMode = mode
	d.vars.CurrentVelocity = velocity
	d.mu.Unlock()
}

func (d *Device) check(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, op)
	return d.failures[op]
}

func (d *Device) applySettings() {
	s := d.eeprom
	d.vars.MaxSpeed = s.MaxSpeed
	d.vars.StartingSpeed = s.StartingSpeed
	d.vars.MaxAccel = s.MaxAccel
	d.vars.MaxDecel = s.MaxDecel
	d.vars.StepMode = s.StepMode
	d.vars.CurrentLimit = s.CurrentLimit
	d.vars.DecayMode = s.DecayMode
	d.vars.AGCMode = s.AGCMode
}

func (d *Device) setError(k tic.ErrorKind, on bool) {
	if on {
		d.vars.ErrorStatus |= uint16(k.Mask())
		d.vars.ErrorsOccurred |= k.Mask()
	} else {
		d.vars.ErrorStatus &^= uint16(k.Mask())
	}
	d.updateEnergized()
}

func (d *Device) updateEnergized() {
	d.vars.Energized = d.vars.ErrorStatus == 0
	if d.vars.Energized {
		d.vars.OperationState = tic.OperationNormal
	} else {
		d.vars.OperationState = tic.OperationDeenergized
		d.vars.PlanningMode = tic.PlanningOff
		d.vars.CurrentVelocity = 0
	}
}

// step advances the simulated motion by one variable read.
func (d *Device) step() {
	v := &d.vars
	if d.homing > 0 {
		d.homing--
		if d.homing == 0 {
			v.HomingActive = false
			v.CurrentPosition = 0
			v.PositionUncertain = false
		}
		return
	}
	if !v.Energized {
		return
	}
	switch v.PlanningMode {
	case tic.PlanningTargetPosition:
		diff := v.TargetPosition - v.CurrentPosition
		const maxStep = 100
		switch {
		case diff > maxStep:
			diff = maxStep
		case diff < -maxStep:
			diff = -maxStep
		}
		v.CurrentPosition += diff
		v.CurrentVelocity = diff
	case tic.PlanningTargetVelocity:
		v.CurrentVelocity = v.TargetVelocity
		v.CurrentPosition += v.TargetVelocity / 10000
	}
}

type handle struct {
	dev    *Device
	mu     sync.Mutex
	closed bool
}

func (h *handle) call(op string, fn func(d *Device) error) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return device.ErrClosed
	}
	if err := h.dev.check(op); err != nil {
		return err
	}
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	return fn(h.dev)
}

func (h *handle) Device() device.DeviceRef { return h.dev.ref }

func (h *handle) GetSettings() (tic.Settings, error) {
	var s tic.Settings
	err := h.call(OpGetSettings, func(d *Device) error {
		s = d.eeprom
		return nil
	})
	return s, err
}

func (h *handle) SetSettings(s tic.Settings) error {
	return h.call(OpSetSettings, func(d *Device) error {
		d.eeprom = s
		return nil
	})
}

func (h *handle) Reinitialize() error {
	return h.call(OpReinitialize, func(d *Device) error {
		d.applySettings()
		return nil
	})
}

func (h *handle) RestoreDefaults() error {
	return h.call(OpRestoreDefaults, func(d *Device) error {
		d.eeprom = tic.DefaultSettings(d.ref.Product)
		d.applySettings()
		return nil
	})
}

func (h *handle) GetVariables(clearErrorsOccurred bool) (tic.Variables, error) {
	var v tic.Variables
	err := h.call(OpGetVariables, func(d *Device) error {
		d.step()
		d.vars.InputAfterAveraging = d.input
		if len(d.queued) > 0 {
			d.vars.InputAfterAveraging = d.queued[0]
			d.queued = d.queued[1:]
		}
		d.vars.InputAfterHysteresis = d.vars.InputAfterAveraging
		d.vars.UpTime += 50
		v = d.vars
		if clearErrorsOccurred {
			d.vars.ErrorsOccurred = 0
		}
		return nil
	})
	return v, err
}

func (h *handle) command(fn func(d *Device)) error {
	return h.call(OpCommand, func(d *Device) error {
		fn(d)
		return nil
	})
}

func (h *handle) ResetCommandTimeout() error {
	return h.command(func(d *Device) { d.setError(tic.ErrorCommandTimeout, false) })
}

func (h *handle) SetTargetPosition(position int32) error {
	return h.command(func(d *Device) {
		if d.vars.Energized {
			d.vars.PlanningMode = tic.PlanningTargetPosition
			d.vars.TargetPosition = position
		}
	})
}

func (h *handle) SetTargetVelocity(velocity int32) error {
	return h.command(func(d *Device) {
		if d.vars.Energized {
			d.vars.PlanningMode = tic.PlanningTargetVelocity
			d.vars.TargetVelocity = velocity
		}
	})
}

func (h *handle) HaltAndHold() error {
	return h.command(func(d *Device) {
		d.vars.PlanningMode = tic.PlanningOff
		d.vars.CurrentVelocity = 0
	})
}

func (h *handle) HaltAndSetPosition(position int32) error {
	return h.command(func(d *Device) {
		d.vars.PlanningMode = tic.PlanningOff
		d.vars.CurrentVelocity = 0
		d.vars.CurrentPosition = position
		d.vars.PositionUncertain = false
	})
}

func (h *handle) Energize() error {
	return h.command(func(d *Device) { d.setError(tic.ErrorIntentionallyDeenergized, false) })
}

func (h *handle) Deenergize() error {
	return h.command(func(d *Device) { d.setError(tic.ErrorIntentionallyDeenergized, true) })
}

func (h *handle) ExitSafeStart() error {
	return h.command(func(d *Device) { d.setError(tic.ErrorSafeStartViolation, false) })
}

func (h *handle) GoHome(dir tic.HomeDirection) error {
	return h.command(func(d *Device) {
		d.vars.HomingActive = true
		d.homing = 3
	})
}

func (h *handle) ClearDriverError() error {
	return h.command(func(d *Device) { d.setError(tic.ErrorMotorDriverError, false) })
}

func (h *handle) StartBootloader() error {
	err := h.command(func(d *Device) {})
	if err == nil {
		// The device re-enumerates as a bootloader, which this transport does not list.
		h.dev.transport.Remove(h.dev.ref.SerialNumber)
	}
	return err
}

func (h *handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
