// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"testing"

	"github.com/matryer/is"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

func TestResumeEnabledInSerialMode(t *testing.T) {
	is := is.New(t)
	resumable := tic.ErrorMask(
		tic.ErrorIntentionallyDeenergized,
		tic.ErrorSerialError,
		tic.ErrorCommandTimeout,
		tic.ErrorSafeStartViolation,
	)

	// Every combination of the stopping error bits.
	for status := uint32(0); status < 1<<9; status++ {
		want := status != 0 && status&^resumable == 0
		got := ResumeEnabled(tic.ControlSerial, uint16(status))
		if got != want {
			t.Fatalf("status %#x: got %v, want %v", status, got, want)
		}
	}
	is.True(ResumeEnabled(tic.ControlSerial, uint16(tic.ErrorMask(tic.ErrorCommandTimeout))))
	is.True(!ResumeEnabled(tic.ControlSerial, uint16(tic.ErrorMask(tic.ErrorCommandTimeout, tic.ErrorLowVin))))
}

func TestResumeEnabledInOtherModes(t *testing.T) {
	is := is.New(t)
	deenergized := uint16(tic.ErrorIntentionallyDeenergized.Mask())

	for _, mode := range []tic.ControlMode{tic.ControlRCPosition, tic.ControlAnalogSpeed, tic.ControlStepDir} {
		is.True(ResumeEnabled(mode, deenergized))
		is.True(ResumeEnabled(mode, deenergized|uint16(tic.ErrorLowVin.Mask()))) // other errors do not matter
		is.True(!ResumeEnabled(mode, uint16(tic.ErrorSafeStartViolation.Mask())))
		is.True(!ResumeEnabled(mode, 0))
	}
}

func TestMotorStatus(t *testing.T) {
	errs := func(kinds ...tic.ErrorKind) uint16 { return uint16(tic.ErrorMask(kinds...)) }

	tests := []struct {
		name        string
		vars        tic.Variables
		wantText    string
		wantStopped bool
	}{
		{
			name:        "both limits",
			vars:        tic.Variables{Energized: true, ForwardLimitActive: true, ReverseLimitActive: true},
			wantText:    "Forward and reverse limit switches active.",
			wantStopped: true,
		},
		{
			name:        "forward limit",
			vars:        tic.Variables{Energized: true, ForwardLimitActive: true},
			wantText:    "Forward limit switch active.",
			wantStopped: true,
		},
		{
			name:        "reverse limit",
			vars:        tic.Variables{Energized: true, ReverseLimitActive: true},
			wantText:    "Reverse limit switch active.",
			wantStopped: true,
		},
		{
			name:        "de-energized without errors",
			vars:        tic.Variables{},
			wantText:    "Motor de-energized.",
			wantStopped: true,
		},
		{
			name:     "homing",
			vars:     tic.Variables{Energized: true, HomingActive: true},
			wantText: "Homing...",
		},
		{
			name:     "driving",
			vars:     tic.Variables{Energized: true},
			wantText: "Motor driving.",
		},
		{
			name:        "low vin wins over everything",
			vars:        tic.Variables{ErrorStatus: errs(tic.ErrorLowVin, tic.ErrorMotorDriverError, tic.ErrorIntentionallyDeenergized)},
			wantText:    "Motor de-energized because VIN is too low.",
			wantStopped: true,
		},
		{
			name:        "driver error before intentional",
			vars:        tic.Variables{ErrorStatus: errs(tic.ErrorMotorDriverError, tic.ErrorIntentionallyDeenergized)},
			wantText:    "Motor de-energized because of a motor driver error.",
			wantStopped: true,
		},
		{
			name:        "intentionally de-energized",
			vars:        tic.Variables{ErrorStatus: errs(tic.ErrorIntentionallyDeenergized, tic.ErrorKillSwitch)},
			wantText:    "Motor intentionally de-energized.",
			wantStopped: true,
		},
		{
			name:        "kill switch while de-energized",
			vars:        tic.Variables{ErrorStatus: errs(tic.ErrorKillSwitch, tic.ErrorSafeStartViolation)},
			wantText:    "Motor de-energized because of kill switch.",
			wantStopped: true,
		},
		{
			name: "decelerating after command timeout",
			vars: tic.Variables{
				Energized:       true,
				ErrorStatus:     errs(tic.ErrorCommandTimeout),
				PlanningMode:    tic.PlanningTargetVelocity,
				CurrentVelocity: 5000,
			},
			wantText:    "Motor decelerating because of command timeout.",
			wantStopped: true,
		},
		{
			name:        "holding after safe start violation",
			vars:        tic.Variables{Energized: true, ErrorStatus: errs(tic.ErrorSafeStartViolation)},
			wantText:    "Motor holding because of safe start violation.",
			wantStopped: true,
		},
		{
			name:        "err line high",
			vars:        tic.Variables{Energized: true, ErrorStatus: errs(tic.ErrorErrLineHigh)},
			wantText:    "Motor holding because of ERR line high.",
			wantStopped: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			text, stopped := MotorStatus(tc.vars)
			is.Equal(text, tc.wantText)
			is.Equal(stopped, tc.wantStopped)
		})
	}
}

func TestConnectionStatusText(t *testing.T) {
	is := is.New(t)
	s, tr, _ := newTestSession(t)
	is.Equal(s.View().ConnectionStatus, "No device connected.")

	tr.Add(tic.ProductT825, "1")
	tr.Add(tic.ProductT825, "2")
	s.Poll()
	is.Equal(s.View().ConnectionStatus, "Not connected.")
	is.Equal(len(s.View().Devices), 2)
}
