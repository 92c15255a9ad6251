// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"fmt"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// command sends one motion command. Errors are shown to the user; on success
// the device's command timeout is re-armed.
func (s *Session) command(name string, fn func(h device.Handle) error) bool {
	if !s.Connected() {
		return false
	}
	if err := fn(s.handle); err != nil {
		s.showError(fmt.Sprintf("There was an error sending the %s command.", name), err)
		return false
	}
	if err := s.handle.ResetCommandTimeout(); err != nil {
		s.log.Debug().Err(err).Msg("reset command timeout failed")
	}
	s.log.Debug().Str("command", name).Msg("command sent")
	return true
}

func (s *Session) SetTargetPosition(position int32) {
	s.command("set target position", func(h device.Handle) error { return h.SetTargetPosition(position) })
}

func (s *Session) SetTargetVelocity(velocity int32) {
	s.command("set target velocity", func(h device.Handle) error { return h.SetTargetVelocity(velocity) })
}

func (s *Session) HaltAndHold() {
	s.command("halt and hold", device.Handle.HaltAndHold)
}

func (s *Session) HaltAndSetPosition(position int32) {
	s.command("halt and set position", func(h device.Handle) error { return h.HaltAndSetPosition(position) })
}

func (s *Session) Energize() {
	s.command("energize", device.Handle.Energize)
}

func (s *Session) Deenergize() {
	s.command("de-energize", device.Handle.Deenergize)
}

func (s *Session) ExitSafeStart() {
	s.command("exit safe start", device.Handle.ExitSafeStart)
}

func (s *Session) GoHome(dir tic.HomeDirection) {
	s.command("go home "+dir.String(), func(h device.Handle) error { return h.GoHome(dir) })
}

func (s *Session) ClearDriverError() {
	s.command("clear driver error", device.Handle.ClearDriverError)
}

// Resume energizes the motor and exits safe start.
func (s *Session) Resume() {
	s.command("resume", func(h device.Handle) error {
		if err := h.Energize(); err != nil {
			return err
		}
		return h.ExitSafeStart()
	})
}

// StartBootloader puts the device into firmware upgrade mode. The device
// disappears from the list afterwards, which the next poll reports as a
// lost connection.
func (s *Session) StartBootloader() {
	if !s.Connected() {
		return
	}
	if err := s.handle.StartBootloader(); err != nil {
		s.showError("There was an error starting the bootloader.", err)
		return
	}
	s.ui.ShowInfo("The device is now in bootloader mode and can be upgraded.")
}
