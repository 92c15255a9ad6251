// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package i2ctic talks to Tics on an I2C bus using the periph.io Tic driver.
// I2C has no device enumeration, so the transport probes a configured list
// of addresses.
package i2ctic

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	periphtic "periph.io/x/devices/v3/tic"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/device/wire"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

var variants = map[tic.Product]periphtic.Variant{
	tic.ProductT825: periphtic.TicT825,
	tic.ProductT834: periphtic.TicT834,
	tic.ProductT500: periphtic.TicT500,
	tic.ProductT249: periphtic.TicT249,
	tic.Product36v4: periphtic.Tic36v4,
}

type Options struct {
	// Bus is the periph bus name; empty selects the first bus.
	Bus       string
	Addresses []uint16
	// Product is assumed for every address, since I2C cannot tell variants apart.
	Product tic.Product
}

type Transport struct {
	log  zerolog.Logger
	opts Options

	mu  sync.Mutex
	bus i2c.BusCloser
}

func NewTransport(log zerolog.Logger, opts Options) (*Transport, error) {
	if _, ok := variants[opts.Product]; !ok {
		return nil, fmt.Errorf("unsupported Tic variant %q", opts.Product.ShortName())
	}
	if len(opts.Addresses) == 0 {
		opts.Addresses = []uint16{periphtic.I2CAddr}
	}
	return &Transport{log: log.With().Str("transport", "i2c").Logger(), opts: opts}, nil
}

func (t *Transport) openBus() (i2c.Bus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bus != nil {
		return t.bus, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(t.opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", t.opts.Bus, err)
	}
	t.log.Info().Str("bus", bus.String()).Msg("I2C bus opened")
	t.bus = bus
	return bus, nil
}

// Close releases the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bus == nil {
		return nil
	}
	err := t.bus.Close()
	t.bus = nil
	return err
}

func (t *Transport) ref(addr uint16) device.DeviceRef {
	return device.DeviceRef{
		SerialNumber: fmt.Sprintf("0x%02X", addr),
		Product:      t.opts.Product,
		Path:         fmt.Sprintf("i2c:%s:0x%02X", t.opts.Bus, addr),
	}
}

// ListConnectedDevices probes each configured address.
func (t *Transport) ListConnectedDevices() ([]device.DeviceRef, error) {
	bus, err := t.openBus()
	if err != nil {
		return nil, err
	}
	var refs []device.DeviceRef
	for _, addr := range t.opts.Addresses {
		if _, err := periphtic.NewI2C(bus, variants[t.opts.Product], addr); err != nil {
			t.log.Debug().Err(err).Uint16("addr", addr).Msg("no Tic at address")
			continue
		}
		refs = append(refs, t.ref(addr))
	}
	return refs, nil
}

func (t *Transport) Open(ref device.DeviceRef) (device.Handle, error) {
	bus, err := t.openBus()
	if err != nil {
		return nil, err
	}
	for _, addr := range t.opts.Addresses {
		if t.ref(addr).Same(ref) {
			dev, err := periphtic.NewI2C(bus, variants[t.opts.Product], addr)
			if err != nil {
				return nil, err
			}
			return &handle{ref: ref, dev: dev}, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", ref, device.ErrDeviceNotFound)
}

type handle struct {
	mu     sync.Mutex
	ref    device.DeviceRef
	dev    *periphtic.Dev
	closed bool
}

func (h *handle) Device() device.DeviceRef { return h.ref }

func (h *handle) do(fn func(d *periphtic.Dev) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}
	return fn(h.dev)
}

// reader collects the first error of a sequence of reads.
type reader struct{ err error }

func get[T any](r *reader, fn func() (T, error)) T {
	var v T
	if r.err != nil {
		return v
	}
	v, r.err = fn()
	return v
}

// GetVariables reads the variables one at a time. The driver only reads the
// errors-occurred register by clearing it, so it stays zero unless
// clearErrorsOccurred is set.
func (h *handle) GetVariables(clearErrorsOccurred bool) (tic.Variables, error) {
	var v tic.Variables
	err := h.do(func(d *periphtic.Dev) error {
		r := &reader{}
		v.OperationState = tic.OperationState(get(r, d.GetOperationState))
		v.Energized = get(r, d.IsEnergized)
		v.PositionUncertain = get(r, d.IsPositionUncertain)
		v.ForwardLimitActive = get(r, d.IsForwardLimitActive)
		v.ReverseLimitActive = get(r, d.IsReverseLimitActive)
		v.HomingActive = get(r, d.IsHomingActive)
		v.ErrorStatus = get(r, d.GetErrorStatus)
		if clearErrorsOccurred {
			v.ErrorsOccurred = get(r, d.GetErrorsOccurred)
		}

		planning := get(r, d.GetPlanningMode)
		v.PlanningMode = tic.PlanningMode(planning)
		switch planning {
		case periphtic.PlanningModeTargetPosition:
			v.TargetPosition = get(r, d.GetTargetPosition)
		case periphtic.PlanningModeTargetVelocity:
			v.TargetVelocity = get(r, d.GetTargetVelocity)
		}
		v.StartingSpeed = get(r, d.GetStartingSpeed)
		v.MaxSpeed = get(r, d.GetMaxSpeed)
		v.MaxDecel = get(r, d.GetMaxDecel)
		v.MaxAccel = get(r, d.GetMaxAccel)
		v.CurrentPosition = get(r, d.GetCurrentPosition)
		v.CurrentVelocity = get(r, d.GetCurrentVelocity)

		v.VinVoltage = uint16(get(r, d.GetVoltageIn) / physic.MilliVolt)
		v.UpTime = uint32(get(r, d.GetUpTime) / time.Millisecond)

		v.StepMode = tic.StepMode(get(r, d.GetStepMode))
		v.CurrentLimit = uint32(get(r, d.GetCurrentLimit) / physic.MilliAmpere)
		if h.ref.Product.HasDecayMode() {
			v.DecayMode = tic.DecayMode(get(r, d.GetDecayMode))
		}
		if h.ref.Product.HasAGC() {
			v.AGCMode = tic.AGCMode(get(r, d.GetAGCMode))
		}

		v.InputState = tic.InputState(get(r, d.GetInputState))
		v.InputAfterAveraging = get(r, d.GetInputAfterAveraging)
		v.InputAfterHysteresis = get(r, d.GetInputAfterHysteresis)
		v.InputAfterScaling = get(r, d.GetInputAfterScaling)
		return r.err
	})
	return v, err
}

// GetSettings reads the stored settings blocks. The runtime values come
// from the variables, which reflect any overrides sent since the last reset.
func (h *handle) GetSettings() (tic.Settings, error) {
	img := make([]byte, wire.SettingsImageLength)
	err := h.do(func(d *periphtic.Dev) error {
		// The driver's offset type is unexported, so each block is read
		// with a constant offset.
		reads := []struct {
			at   int
			read func() ([]byte, error)
		}{
			{0x01, func() ([]byte, error) { return d.GetSetting(0x01, 10) }},
			{0x20, func() ([]byte, error) { return d.GetSetting(0x20, 15) }},
			{0x2F, func() ([]byte, error) { return d.GetSetting(0x2F, 7) }},
		}
		for _, rd := range reads {
			b, err := rd.read()
			if err != nil {
				return err
			}
			copy(img[rd.at:], b)
		}
		return nil
	})
	if err != nil {
		return tic.Settings{}, err
	}
	vars, err := h.GetVariables(false)
	if err != nil {
		return tic.Settings{}, err
	}
	return wire.DecodeSettings(img, vars, h.ref.Product), nil
}

// SetSettings applies the runtime subset of s, like the serial transport.
func (h *handle) SetSettings(s tic.Settings) error {
	return h.do(func(d *periphtic.Dev) error {
		steps := []func() error{
			func() error { return d.SetMaxSpeed(s.MaxSpeed) },
			func() error { return d.SetStartingSpeed(s.StartingSpeed) },
			func() error { return d.SetMaxAccel(s.MaxAccel) },
			func() error { return d.SetMaxDecel(s.MaxDecel) },
			func() error { return d.SetStepMode(periphtic.StepMode(s.StepMode)) },
			func() error {
				return d.SetCurrentLimit(physic.ElectricCurrent(s.CurrentLimit) * physic.MilliAmpere)
			},
		}
		if h.ref.Product.HasDecayMode() {
			steps = append(steps, func() error { return d.SetDecayMode(periphtic.DecayMode(s.DecayMode)) })
		}
		if h.ref.Product.HasAGC() {
			steps = append(steps, func() error { return d.SetAGCMode(periphtic.AGCMode(s.AGCMode)) })
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *handle) Reinitialize() error { return nil }

func (h *handle) RestoreDefaults() error {
	return fmt.Errorf("restoring defaults over I2C: %w", device.ErrUnsupported)
}

func (h *handle) StartBootloader() error {
	return fmt.Errorf("starting the bootloader over I2C: %w", device.ErrUnsupported)
}

func (h *handle) ResetCommandTimeout() error {
	return h.do((*periphtic.Dev).ResetCommandTimeout)
}

func (h *handle) SetTargetPosition(position int32) error {
	return h.do(func(d *periphtic.Dev) error { return d.SetTargetPosition(position) })
}

func (h *handle) SetTargetVelocity(velocity int32) error {
	return h.do(func(d *periphtic.Dev) error { return d.SetTargetVelocity(velocity) })
}

func (h *handle) HaltAndHold() error { return h.do((*periphtic.Dev).HaltAndHold) }

func (h *handle) HaltAndSetPosition(position int32) error {
	return h.do(func(d *periphtic.Dev) error { return d.HaltAndSetPosition(position) })
}

func (h *handle) Energize() error { return h.do((*periphtic.Dev).Energize) }

func (h *handle) Deenergize() error { return h.do((*periphtic.Dev).Deenergize) }

func (h *handle) ExitSafeStart() error { return h.do((*periphtic.Dev).ExitSafeStart) }

func (h *handle) GoHome(dir tic.HomeDirection) error {
	if dir == tic.HomeForward {
		return h.do((*periphtic.Dev).GoHomeForward)
	}
	return h.do((*periphtic.Dev).GoHomeReverse)
}

func (h *handle) ClearDriverError() error { return h.do((*periphtic.Dev).ClearDriverError) }

// Close forgets the device; the bus stays open for the transport.
func (h *handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
