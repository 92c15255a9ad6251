// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration learns the scaling of an RC or analog input: the user
// holds the input at neutral, at its maximum and at its minimum while the
// engine samples it, and the engine derives the input_* settings from the
// three ranges.
package calibration

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

// DefaultSampleCount is the number of readings taken per phase.
const DefaultSampleCount = 20

var ErrNotComplete = errors.New("calibration is not complete")

// Device is the part of the session the engine drives.
type Device interface {
	Deenergize()
	InputReading() uint16
	// VariablesSeq changes whenever a new reading is available.
	VariablesSeq() uint64
	ControlMode() tic.ControlMode
	MutateSetting(fn func(*tic.Settings))
}

// UI shows rejections and warnings to the user.
type UI interface {
	ShowError(message string)
	ShowWarning(message string)
}

type Phase int

const (
	PhaseIntro Phase = iota
	PhaseNeutral
	PhaseMax
	PhaseMin
	PhaseConclusion
)

var phaseNames = []string{"intro", "neutral", "max", "min", "conclusion"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Learning reports whether p is one of the three sampling phases.
func (p Phase) Learning() bool { return p == PhaseNeutral || p == PhaseMax || p == PhaseMin }

// State is a snapshot of the engine for display.
type State struct {
	Phase       Phase       `json:"phase"`
	Sampling    bool        `json:"sampling"`
	Samples     int         `json:"samples"`
	SampleCount int         `json:"sample_count"`
	Neutral     *InputRange `json:"neutral,omitempty"`
	Max         *InputRange `json:"max,omitempty"`
	Min         *InputRange `json:"min,omitempty"`
	Result      *Result     `json:"result,omitempty"`
	Warning     string      `json:"warning,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type Option func(*Engine)

// WithSampleCount sets the number of readings taken per phase.
func WithSampleCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sampleCount = n
		}
	}
}

// Engine is the calibration wizard. Like the session it is not safe for
// concurrent use; Tick is expected to run on the same poll loop.
type Engine struct {
	dev         Device
	ui          UI
	log         zerolog.Logger
	sampleCount int

	phase     Phase
	sampling  bool
	samples   []uint16
	seq       uint64
	fullRange uint16

	neutral, max, min *InputRange
	result            *Result
	warning           string
	lastError         string
}

func NewEngine(dev Device, ui UI, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		dev:         dev,
		ui:          ui,
		log:         log.With().Str("component", "calibration").Logger(),
		sampleCount: DefaultSampleCount,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start leaves the intro page. The motor is de-energized first so it does
// not move while the input is swept.
func (e *Engine) Start() error {
	if e.phase != PhaseIntro {
		return nil
	}
	full, err := StandardFullRange(e.dev.ControlMode())
	if err != nil {
		e.fail(err)
		return err
	}
	e.reset()
	e.fullRange = full
	e.dev.Deenergize()
	e.phase = PhaseNeutral
	e.log.Info().Uint16("full_range", full).Msg("calibration started")
	return nil
}

// Next starts sampling on a learning page, or starts the wizard from the
// intro page.
func (e *Engine) Next() error {
	switch {
	case e.phase == PhaseIntro:
		return e.Start()
	case e.phase.Learning() && !e.sampling:
		e.sampling = true
		e.samples = make([]uint16, 0, e.sampleCount)
		e.seq = e.dev.VariablesSeq()
		e.lastError = ""
		e.log.Debug().Stringer("phase", e.phase).Msg("sampling started")
	}
	return nil
}

// Back cancels sampling in progress, or returns to the previous page.
func (e *Engine) Back() {
	if e.sampling {
		e.stopSampling()
		e.log.Debug().Stringer("phase", e.phase).Msg("sampling cancelled")
		return
	}
	switch e.phase {
	case PhaseNeutral:
		e.phase = PhaseIntro
	case PhaseMax:
		e.phase = PhaseNeutral
	case PhaseMin:
		e.phase = PhaseMax
	case PhaseConclusion:
		e.phase = PhaseMin
		e.result = nil
		e.warning = ""
	}
}

// Tick takes one reading while sampling. It must be called after the
// session has refreshed its variables for the tick; a tick without a fresh
// reading adds nothing.
func (e *Engine) Tick() {
	if !e.sampling {
		return
	}
	seq := e.dev.VariablesSeq()
	if seq == e.seq {
		return
	}
	e.seq = seq
	reading := e.dev.InputReading()
	if reading == tic.InputNull {
		e.stopSampling()
		e.fail(reject(ErrInputInvalid,
			"The input is not valid. Make sure the input is connected and that the control mode "+
				"matches it, then try again."))
		return
	}
	e.samples = append(e.samples, reading)
	if len(e.samples) < e.sampleCount {
		return
	}
	samples := e.samples
	e.stopSampling()
	e.finishPhase(samples)
}

func (e *Engine) finishPhase(samples []uint16) {
	r, err := Learn(samples, e.fullRange)
	if err != nil {
		e.fail(err)
		return
	}
	e.log.Info().Stringer("phase", e.phase).Stringer("range", r).Uint16("average", r.Average).Msg("phase learned")

	switch e.phase {
	case PhaseNeutral:
		widened := WidenNeutral(r, e.fullRange)
		e.neutral = &widened
		e.phase = PhaseMax
	case PhaseMax:
		e.max = &r
		e.phase = PhaseMin
	case PhaseMin:
		res, warning, err := Conclude(*e.neutral, *e.max, r, e.fullRange)
		if err != nil {
			e.fail(err)
			return
		}
		e.min = &r
		e.result = &res
		e.warning = warning
		e.phase = PhaseConclusion
		if warning != "" {
			e.ui.ShowWarning(warning)
		}
	}
}

// Finish writes the result into the session's working settings and closes
// the wizard. The motor stays de-energized.
func (e *Engine) Finish() error {
	if e.phase != PhaseConclusion || e.result == nil {
		return ErrNotComplete
	}
	res := *e.result
	e.dev.MutateSetting(res.Apply)
	e.log.Info().Interface("result", res).Msg("calibration applied")
	e.reset()
	return nil
}

// Cancel closes the wizard without touching the settings.
func (e *Engine) Cancel() {
	if e.phase != PhaseIntro {
		e.log.Info().Stringer("phase", e.phase).Msg("calibration cancelled")
	}
	e.reset()
}

// Result returns the derived settings once the wizard has concluded.
func (e *Engine) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

func (e *Engine) State() State {
	return State{
		Phase:       e.phase,
		Sampling:    e.sampling,
		Samples:     len(e.samples),
		SampleCount: e.sampleCount,
		Neutral:     copyRange(e.neutral),
		Max:         copyRange(e.max),
		Min:         copyRange(e.min),
		Result:      copyResult(e.result),
		Warning:     e.warning,
		Error:       e.lastError,
	}
}

func (e *Engine) reset() {
	e.phase = PhaseIntro
	e.stopSampling()
	e.neutral, e.max, e.min = nil, nil, nil
	e.result = nil
	e.warning = ""
	e.lastError = ""
}

func (e *Engine) stopSampling() {
	e.sampling = false
	e.samples = nil
}

func (e *Engine) fail(err error) {
	e.lastError = err.Error()
	e.log.Warn().Err(err).Stringer("phase", e.phase).Msg("calibration step rejected")
	e.ui.ShowError(err.Error())
}

func copyRange(r *InputRange) *InputRange {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func copyResult(r *Result) *Result {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
