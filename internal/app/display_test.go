// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"github.com/matryer/is"

	"github.com/relabs-tech/tic_controller/internal/calibration"
	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/session"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

func TestStatusLines(t *testing.T) {
	connected := session.View{
		State:         session.Connected,
		Device:        device.DeviceRef{SerialNumber: "00200300", Product: tic.ProductT834},
		HaveVariables: true,
		Variables:     tic.Variables{CurrentPosition: -1500, CurrentVelocity: 200000, InputAfterAveraging: 2048},
		MotorStatus:   "Driving at a very long status text",
	}

	tests := []struct {
		name string
		snap Snapshot
		want []string
	}{
		{"no devices", Snapshot{}, []string{"Tic controller", "No devices", "found."}},
		{
			"devices but not connected",
			Snapshot{View: session.View{Devices: []device.DeviceRef{{}, {}}}},
			[]string{"Tic controller", "Not connected", "2 device(s)"},
		},
		{
			"connection error",
			Snapshot{View: session.View{State: session.ConnectionError}},
			[]string{"Tic controller", "Connection error"},
		},
		{
			"connected",
			Snapshot{View: connected},
			[]string{"Tic T834 #00200300", "Driving at a very ", "P:-1500", "V:200000", "In:2048"},
		},
		{
			"calibrating",
			Snapshot{View: connected, Calibration: calibration.State{Phase: calibration.PhaseMax, Samples: 4, SampleCount: 20}},
			[]string{"Tic T834 #00200300", "Driving at a very ", "P:-1500", "V:200000", "Cal max 4/20"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(statusLines(tt.snap), tt.want)
		})
	}
}

func TestStatusLinesWithoutInput(t *testing.T) {
	is := is.New(t)
	v := session.View{
		State:         session.Connected,
		HaveVariables: true,
		Variables:     tic.Variables{InputAfterAveraging: tic.InputNull},
	}

	lines := statusLines(Snapshot{View: v})

	is.Equal(lines[len(lines)-1], "In: N/A")
}

func TestRenderLines(t *testing.T) {
	is := is.New(t)

	blank := renderLines(nil)
	text := renderLines([]string{"Tic controller"})

	is.Equal(blank.Bounds().Dx(), displayWidth)
	is.Equal(blank.Bounds().Dy(), displayHeight)
	lit := func(pix []byte) int {
		n := 0
		for _, b := range pix {
			if b != 0 {
				n++
			}
		}
		return n
	}
	is.Equal(lit(blank.Pix), 0)
	is.True(lit(text.Pix) > 0)
}
