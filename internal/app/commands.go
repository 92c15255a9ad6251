// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"sort"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/session"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingValue   = errors.New("command needs a value")
)

// Command is a motion command as received over HTTP or MQTT.
type Command struct {
	Action string `json:"action"`
	Value  *int32 `json:"value,omitempty"`
}

type commandSpec struct {
	needsValue bool
	run        func(s *session.Session, v int32)
}

var commands = map[string]commandSpec{
	"set_target_position":   {true, (*session.Session).SetTargetPosition},
	"set_target_velocity":   {true, (*session.Session).SetTargetVelocity},
	"halt_and_set_position": {true, (*session.Session).HaltAndSetPosition},
	"halt_and_hold":         {run: func(s *session.Session, _ int32) { s.HaltAndHold() }},
	"energize":              {run: func(s *session.Session, _ int32) { s.Energize() }},
	"deenergize":            {run: func(s *session.Session, _ int32) { s.Deenergize() }},
	"exit_safe_start":       {run: func(s *session.Session, _ int32) { s.ExitSafeStart() }},
	"resume":                {run: func(s *session.Session, _ int32) { s.Resume() }},
	"go_home_forward":       {run: func(s *session.Session, _ int32) { s.GoHome(tic.HomeForward) }},
	"go_home_reverse":       {run: func(s *session.Session, _ int32) { s.GoHome(tic.HomeReverse) }},
	"clear_driver_error":    {run: func(s *session.Session, _ int32) { s.ClearDriverError() }},
	"reset_error_counts":    {run: func(s *session.Session, _ int32) { s.ResetErrorCounts() }},
	"start_bootloader":      {run: func(s *session.Session, _ int32) { s.StartBootloader() }},
}

// CommandNames lists the accepted actions in order.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runCommand checks cmd and sends it. Device errors reach the user through
// the session UI, not the returned error.
func runCommand(s *session.Session, cmd Command) error {
	entry, ok := commands[cmd.Action]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
	var v int32
	if entry.needsValue {
		if cmd.Value == nil {
			return fmt.Errorf("%s: %w", cmd.Action, ErrMissingValue)
		}
		v = *cmd.Value
	}
	if !s.Connected() {
		return device.ErrNotConnected
	}
	entry.run(s, v)
	return nil
}
