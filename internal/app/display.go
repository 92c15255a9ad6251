// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tic_controller/internal/session"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

const (
	displayWidth  = 128
	displayHeight = 64
	// 7x13 glyphs: 18 columns, 5 rows at a 12 pixel pitch.
	displayColumns = displayWidth / 7
	lineHeight     = 12
)

// Display shows the motor status on an SSD1306 OLED. The driver always
// talks to the panel at address 0x3C.
type Display struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
	log zerolog.Logger
}

func OpenDisplay(busName string, log zerolog.Logger) (*Display, error) {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	d := &Display{bus: bus, dev: dev, log: log.With().Str("component", "display").Logger()}
	d.log.Info().Str("bus", busName).Msg("display initialized")

	if err := d.draw([]string{"", "Tic controller", "", "Looking for", "devices"}); err != nil {
		d.log.Warn().Err(err).Msg("error showing splash")
	}
	return d, nil
}

// Update redraws the panel from snap.
func (d *Display) Update(snap Snapshot) error {
	return d.draw(statusLines(snap))
}

func (d *Display) Close() error {
	if err := d.dev.Halt(); err != nil {
		d.log.Debug().Err(err).Msg("display halt failed")
	}
	return d.bus.Close()
}

func (d *Display) draw(lines []string) error {
	img := renderLines(lines)
	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, (i+1)*lineHeight-1)
		drawer.DrawString(line)
	}
	return img
}

func clip(s string) string {
	if len(s) > displayColumns {
		return s[:displayColumns]
	}
	return s
}

// statusLines lays out the panel text, one entry per row.
func statusLines(snap Snapshot) []string {
	v := snap.View
	switch v.State {
	case session.Disconnected:
		if len(v.Devices) == 0 {
			return []string{"Tic controller", "No devices", "found."}
		}
		return []string{"Tic controller", "Not connected", fmt.Sprintf("%d device(s)", len(v.Devices))}
	case session.ConnectionError:
		return []string{"Tic controller", "Connection error"}
	}

	lines := []string{clip(v.Device.Product.String() + " #" + v.Device.SerialNumber)}
	if !v.HaveVariables {
		return append(lines, "No data")
	}
	vars := v.Variables
	lines = append(lines,
		clip(v.MotorStatus),
		clip(fmt.Sprintf("P:%d", vars.CurrentPosition)),
		clip(fmt.Sprintf("V:%d", vars.CurrentVelocity)),
	)
	cal := snap.Calibration
	switch {
	case cal.Phase.Learning():
		lines = append(lines, clip(fmt.Sprintf("Cal %s %d/%d", cal.Phase, cal.Samples, cal.SampleCount)))
	case vars.InputAfterAveraging == tic.InputNull:
		lines = append(lines, "In: N/A")
	default:
		lines = append(lines, fmt.Sprintf("In:%d", vars.InputAfterAveraging))
	}
	return lines
}
