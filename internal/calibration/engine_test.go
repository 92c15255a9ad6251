// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

type fakeDevice struct {
	mode        tic.ControlMode
	reading     uint16
	queued      []uint16
	deenergized int
	mutations   int
	settings    tic.Settings
	seq         uint64
	stale       bool
}

func (d *fakeDevice) Deenergize() { d.deenergized++ }

func (d *fakeDevice) InputReading() uint16 {
	if len(d.queued) > 0 {
		r := d.queued[0]
		d.queued = d.queued[1:]
		return r
	}
	return d.reading
}

// VariablesSeq advances on every call unless the readings are stale.
func (d *fakeDevice) VariablesSeq() uint64 {
	if !d.stale {
		d.seq++
	}
	return d.seq
}

func (d *fakeDevice) ControlMode() tic.ControlMode { return d.mode }

func (d *fakeDevice) MutateSetting(fn func(*tic.Settings)) {
	d.mutations++
	fn(&d.settings)
}

type fakeUI struct {
	errors   []string
	warnings []string
}

func (u *fakeUI) ShowError(m string)   { u.errors = append(u.errors, m) }
func (u *fakeUI) ShowWarning(m string) { u.warnings = append(u.warnings, m) }

func newTestEngine(mode tic.ControlMode, opts ...Option) (*Engine, *fakeDevice, *fakeUI) {
	dev := &fakeDevice{mode: mode, settings: tic.DefaultSettings(tic.ProductT825)}
	ui := &fakeUI{}
	return NewEngine(dev, ui, zerolog.Nop(), opts...), dev, ui
}

// learn samples one phase with the input held at v.
func learn(e *Engine, dev *fakeDevice, v uint16) {
	dev.reading = v
	e.Next()
	for i := 0; i < e.sampleCount; i++ {
		e.Tick()
	}
}

func TestEngineScenarioA(t *testing.T) {
	is := is.New(t)
	e, dev, ui := newTestEngine(tic.ControlAnalogPosition)

	is.NoErr(e.Start())
	is.Equal(dev.deenergized, 1)
	is.Equal(e.State().Phase, PhaseNeutral)

	learn(e, dev, 2048)
	is.Equal(e.State().Phase, PhaseMax)
	is.Equal(*e.State().Neutral, InputRange{Min: 1843, Max: 2253, Average: 2048})

	learn(e, dev, 4000)
	is.Equal(e.State().Phase, PhaseMin)

	learn(e, dev, 100)
	is.Equal(e.State().Phase, PhaseConclusion)
	is.Equal(len(ui.errors), 0)
	is.Equal(len(ui.warnings), 0)

	res, ok := e.Result()
	is.True(ok)
	is.Equal(res, Result{InputMin: 141, InputNeutralMin: 1843, InputNeutralMax: 2253, InputMax: 3959})

	is.NoErr(e.Finish())
	is.Equal(dev.mutations, 1)
	is.Equal(dev.settings.InputMin, uint16(141))
	is.Equal(dev.settings.InputNeutralMin, uint16(1843))
	is.Equal(dev.settings.InputNeutralMax, uint16(2253))
	is.Equal(dev.settings.InputMax, uint16(3959))
	is.True(!dev.settings.InputInvert)
	is.Equal(e.State().Phase, PhaseIntro)
	is.Equal(dev.deenergized, 1) // never re-energized
}

func TestEngineScenarioBStaysOnMinPhase(t *testing.T) {
	is := is.New(t)
	e, dev, ui := newTestEngine(tic.ControlAnalogPosition)
	is.NoErr(e.Start())

	learn(e, dev, 2048)
	learn(e, dev, 3000)
	learn(e, dev, 3000)

	is.Equal(e.State().Phase, PhaseMin)
	is.True(!e.State().Sampling)
	is.Equal(len(ui.errors), 1)
	is.True(strings.Contains(ui.errors[0], "intersect"))
	_, ok := e.Result()
	is.True(!ok)
	is.True(errors.Is(e.Finish(), ErrNotComplete))
	is.Equal(dev.mutations, 0)

	learn(e, dev, 100) // retry the same phase
	is.Equal(e.State().Phase, PhaseConclusion)
	is.Equal(e.State().Error, "")
}

func TestEngineScenarioCStaysOnNeutralPhase(t *testing.T) {
	is := is.New(t)
	e, dev, ui := newTestEngine(tic.ControlAnalogPosition)
	is.NoErr(e.Start())

	dev.queued = alternating(0, 4095, DefaultSampleCount)
	e.Next()
	for i := 0; i < DefaultSampleCount; i++ {
		e.Tick()
	}

	is.Equal(e.State().Phase, PhaseNeutral)
	is.Equal(len(ui.errors), 1)
	is.True(strings.Contains(ui.errors[0], "varied too widely"))
	is.True(e.State().Neutral == nil)
}

func TestEngineNullReadingCancelsSampling(t *testing.T) {
	is := is.New(t)
	e, dev, ui := newTestEngine(tic.ControlRCPosition)
	is.NoErr(e.Start())

	dev.queued = []uint16{1500, 1501, 1499, tic.InputNull}
	dev.reading = 1500
	e.Next()
	for i := 0; i < 4; i++ {
		e.Tick()
	}

	st := e.State()
	is.Equal(st.Phase, PhaseNeutral)
	is.True(!st.Sampling)
	is.Equal(st.Samples, 0) // nothing kept from the aborted run
	is.Equal(len(ui.errors), 1)

	// A retry starts from scratch and needs a full set of samples.
	e.Next()
	for i := 0; i < DefaultSampleCount-1; i++ {
		e.Tick()
	}
	is.Equal(e.State().Samples, DefaultSampleCount-1)
	e.Tick()
	is.Equal(e.State().Phase, PhaseMax)
}

func TestEngineBack(t *testing.T) {
	is := is.New(t)
	e, dev, _ := newTestEngine(tic.ControlAnalogSpeed)
	is.NoErr(e.Start())
	learn(e, dev, 2048)
	is.Equal(e.State().Phase, PhaseMax)

	dev.reading = 4000
	e.Next()
	e.Tick()
	e.Tick()
	is.True(e.State().Sampling)

	e.Back() // cancels sampling only
	is.True(!e.State().Sampling)
	is.Equal(e.State().Samples, 0)
	is.Equal(e.State().Phase, PhaseMax)

	e.Back()
	is.Equal(e.State().Phase, PhaseNeutral)
	e.Back()
	is.Equal(e.State().Phase, PhaseIntro)
}

func TestEngineStartRejectsUnsupportedMode(t *testing.T) {
	is := is.New(t)
	e, dev, ui := newTestEngine(tic.ControlSerial)

	err := e.Start()

	is.True(errors.Is(err, ErrUnsupportedControlMode))
	is.Equal(e.State().Phase, PhaseIntro)
	is.Equal(dev.deenergized, 0)
	is.Equal(len(ui.errors), 1)
}

func TestEngineCancelLeavesSettingsAlone(t *testing.T) {
	is := is.New(t)
	e, dev, _ := newTestEngine(tic.ControlAnalogPosition)
	is.NoErr(e.Start())
	learn(e, dev, 2048)
	learn(e, dev, 4000)
	learn(e, dev, 100)

	e.Cancel()

	is.Equal(dev.mutations, 0)
	is.Equal(e.State().Phase, PhaseIntro)
	_, ok := e.Result()
	is.True(!ok)
}

func TestEngineWarnsForOneDirection(t *testing.T) {
	is := is.New(t)
	e, dev, ui := newTestEngine(tic.ControlAnalogPosition)
	is.NoErr(e.Start())

	learn(e, dev, 2048)
	learn(e, dev, 4000)
	learn(e, dev, 2000)

	is.Equal(e.State().Phase, PhaseConclusion)
	is.Equal(len(ui.warnings), 1)
	is.True(strings.Contains(ui.warnings[0], "target minimum to 0"))
	res, _ := e.Result()
	is.Equal(res.InputMin, uint16(1843))
}

func TestEngineSampleCountOption(t *testing.T) {
	is := is.New(t)
	e, dev, _ := newTestEngine(tic.ControlAnalogPosition, WithSampleCount(5))
	is.NoErr(e.Next()) // next on the intro page starts the wizard
	is.Equal(e.State().Phase, PhaseNeutral)

	dev.reading = 2048
	e.Next()
	for i := 0; i < 5; i++ {
		e.Tick()
	}
	is.Equal(e.State().Phase, PhaseMax)
	is.Equal(e.State().SampleCount, 5)
}

func TestEngineIgnoresTicksWithoutFreshReadings(t *testing.T) {
	is := is.New(t)
	e, dev, _ := newTestEngine(tic.ControlAnalogPosition)
	is.NoErr(e.Start())

	dev.reading = 2048
	e.Next()
	e.Tick()
	dev.stale = true
	for i := 0; i < 2*e.sampleCount; i++ {
		e.Tick()
	}
	is.Equal(e.State().Phase, PhaseNeutral)
	is.True(e.State().Sampling)
	is.Equal(e.State().Samples, 1)

	dev.stale = false
	for i := 1; i < e.sampleCount; i++ {
		e.Tick()
	}
	is.Equal(e.State().Phase, PhaseMax)
}
