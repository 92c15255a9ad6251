// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialtic talks to Tics over a serial port, either the USB virtual
// serial port of a Tic plugged into the host or a TTL UART wired to its RX
// and TX pins.
package serialtic

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/device/wire"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// PololuVID is the USB vendor ID of Pololu devices.
const PololuVID = "1FFB"

var productIDs = map[string]tic.Product{
	"00B3": tic.ProductT825,
	"00B5": tic.ProductT834,
	"00BD": tic.ProductT500,
	"00C3": tic.Product36v4,
	"00C9": tic.ProductT249,
}

var ErrTimeout = errors.New("serial read timed out")

type Options struct {
	// Port is a fixed serial port. When empty, USB serial ports with a
	// Pololu Tic product ID are listed.
	Port string
	// Product is reported for a fixed port, which cannot be identified.
	Product      tic.Product
	BaudRate     uint
	DeviceNumber int
}

type Transport struct {
	log  zerolog.Logger
	opts Options

	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

func NewTransport(log zerolog.Logger, opts Options) *Transport {
	return &Transport{
		log:       log.With().Str("transport", "serial").Logger(),
		opts:      opts,
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
	}
}

func (t *Transport) ListConnectedDevices() ([]device.DeviceRef, error) {
	if t.opts.Port != "" {
		return []device.DeviceRef{{
			SerialNumber: filepath.Base(t.opts.Port),
			Product:      t.opts.Product,
			Path:         t.opts.Port,
		}}, nil
	}

	ports, err := t.listPorts()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	var refs []device.DeviceRef
	for _, p := range ports {
		if !p.IsUSB || !strings.EqualFold(p.VID, PololuVID) {
			continue
		}
		product, ok := productIDs[strings.ToUpper(p.PID)]
		if !ok {
			continue
		}
		refs = append(refs, device.DeviceRef{
			SerialNumber: p.SerialNumber,
			Product:      product,
			Path:         p.Name,
		})
	}
	return refs, nil
}

func (t *Transport) Open(ref device.DeviceRef) (device.Handle, error) {
	port, err := t.openPort(serial.OpenOptions{
		PortName:              ref.Path,
		BaudRate:              t.opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", ref.Path, err)
	}
	t.log.Debug().Str("port", ref.Path).Uint("baud", t.opts.BaudRate).Msg("serial port opened")
	return &handle{
		ref:  ref,
		port: port,
		enc:  wire.Encoder{DeviceNumber: t.opts.DeviceNumber},
		log:  t.log.With().Str("device", ref.String()).Logger(),
	}, nil
}

type handle struct {
	mu     sync.Mutex
	ref    device.DeviceRef
	port   io.ReadWriteCloser
	enc    wire.Encoder
	log    zerolog.Logger
	closed bool
}

func (h *handle) Device() device.DeviceRef { return h.ref }

func (h *handle) write(frames ...[]byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return device.ErrClosed
	}
	for _, f := range frames {
		if _, err := h.port.Write(f); err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
	}
	return nil
}

// readBlocks reads each block into its place in a buffer of size n.
func (h *handle) readBlocks(n int, blocks []wire.Block, cmdFor func(i int) byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, device.ErrClosed
	}
	buf := make([]byte, n)
	for i, b := range blocks {
		if _, err := h.port.Write(h.enc.Read(cmdFor(i), b.Offset, b.Length)); err != nil {
			return nil, fmt.Errorf("serial write: %w", err)
		}
		if err := readFull(h.port, buf[b.Offset:int(b.Offset)+int(b.Length)]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// readFull fills p, treating an empty read as the end of the inter-character
// timeout.
func readFull(r io.Reader, p []byte) error {
	for got := 0; got < len(p); {
		n, err := r.Read(p[got:])
		got += n
		if got == len(p) {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w after %d of %d bytes", ErrTimeout, got, len(p))
		}
	}
	return nil
}

func (h *handle) GetVariables(clearErrorsOccurred bool) (tic.Variables, error) {
	buf, err := h.readBlocks(wire.VariablesLength, wire.VariableBlocks, func(i int) byte {
		if i == 0 && clearErrorsOccurred {
			return wire.CmdGetVariableAndClearErrors
		}
		return wire.CmdGetVariable
	})
	if err != nil {
		return tic.Variables{}, err
	}
	return wire.DecodeVariables(buf, h.ref.Product), nil
}

func (h *handle) GetSettings() (tic.Settings, error) {
	img, err := h.readBlocks(wire.SettingsImageLength, wire.SettingsBlocks, func(int) byte { return wire.CmdGetSetting })
	if err != nil {
		return tic.Settings{}, err
	}
	vars, err := h.GetVariables(false)
	if err != nil {
		return tic.Settings{}, err
	}
	return wire.DecodeSettings(img, vars, h.ref.Product), nil
}

// SetSettings applies the settings the device accepts at runtime. They
// last until the device is reset.
func (h *handle) SetSettings(s tic.Settings) error {
	h.log.Debug().Msg("applying runtime settings; stored settings are unchanged")
	return h.write(h.enc.RuntimeSettings(s, h.ref.Product)...)
}

// Reinitialize does nothing: runtime settings are already in effect.
func (h *handle) Reinitialize() error { return nil }

func (h *handle) RestoreDefaults() error {
	return fmt.Errorf("restoring defaults over serial: %w", device.ErrUnsupported)
}

func (h *handle) StartBootloader() error {
	return fmt.Errorf("starting the bootloader over serial: %w", device.ErrUnsupported)
}

func (h *handle) ResetCommandTimeout() error {
	return h.write(h.enc.Quick(wire.CmdResetCommandTimeout))
}

func (h *handle) SetTargetPosition(position int32) error {
	return h.write(h.enc.Write32(wire.CmdSetTargetPosition, uint32(position)))
}

func (h *handle) SetTargetVelocity(velocity int32) error {
	return h.write(h.enc.Write32(wire.CmdSetTargetVelocity, uint32(velocity)))
}

func (h *handle) HaltAndHold() error { return h.write(h.enc.Quick(wire.CmdHaltAndHold)) }

func (h *handle) HaltAndSetPosition(position int32) error {
	return h.write(h.enc.Write32(wire.CmdHaltAndSetPosition, uint32(position)))
}

func (h *handle) Energize() error { return h.write(h.enc.Quick(wire.CmdEnergize)) }

func (h *handle) Deenergize() error { return h.write(h.enc.Quick(wire.CmdDeenergize)) }

func (h *handle) ExitSafeStart() error { return h.write(h.enc.Quick(wire.CmdExitSafeStart)) }

func (h *handle) GoHome(dir tic.HomeDirection) error {
	return h.write(h.enc.Write7(wire.CmdGoHome, byte(dir)))
}

func (h *handle) ClearDriverError() error { return h.write(h.enc.Quick(wire.CmdClearDriverError)) }

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.port.Close()
}
