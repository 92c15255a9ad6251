// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

var (
	ErrRangeTooWide           = errors.New("input varied too widely")
	ErrRangesIntersect        = errors.New("maximum and minimum inputs intersect")
	ErrBothNearNeutral        = errors.New("maximum and minimum inputs are both near neutral")
	ErrSameSideOfNeutral      = errors.New("maximum and minimum inputs are on the same side of neutral")
	ErrInputInvalid           = errors.New("input reading is invalid")
	ErrUnsupportedControlMode = errors.New("control mode has no learnable input")
)

// RejectionError carries the message shown to the user when a phase is
// rejected. Reason is one of the Err* sentinels.
type RejectionError struct {
	Reason  error
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Unwrap() error { return e.Reason }

func reject(reason error, format string, args ...any) error {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Result is what a successful calibration writes into the settings.
type Result struct {
	Invert          bool   `json:"input_invert"`
	InputMin        uint16 `json:"input_min"`
	InputNeutralMin uint16 `json:"input_neutral_min"`
	InputNeutralMax uint16 `json:"input_neutral_max"`
	InputMax        uint16 `json:"input_max"`
}

// Apply copies the result into s.
func (r Result) Apply(s *tic.Settings) {
	s.InputInvert = r.Invert
	s.InputMin = r.InputMin
	s.InputNeutralMin = r.InputNeutralMin
	s.InputNeutralMax = r.InputNeutralMax
	s.InputMax = r.InputMax
}

// Learn turns one phase's samples into a range, rejecting it if the input
// moved too much.
func Learn(samples []uint16, fullRange uint16) (InputRange, error) {
	r := RangeFromSamples(samples)
	if err := CheckSpread(r, fullRange); err != nil {
		return InputRange{}, err
	}
	return r, nil
}

// Derive runs a whole calibration from the three phases' samples. The
// returned warning is non-empty when the input only works in one direction.
func Derive(neutralSamples, maxSamples, minSamples []uint16, mode tic.ControlMode) (Result, string, error) {
	full, err := StandardFullRange(mode)
	if err != nil {
		return Result{}, "", err
	}
	rawNeutral, err := Learn(neutralSamples, full)
	if err != nil {
		return Result{}, "", err
	}
	maxRange, err := Learn(maxSamples, full)
	if err != nil {
		return Result{}, "", err
	}
	minRange, err := Learn(minSamples, full)
	if err != nil {
		return Result{}, "", err
	}
	return Conclude(WidenNeutral(rawNeutral, full), maxRange, minRange, full)
}

// Conclude validates the learned ranges against the widened neutral range
// and computes the scaling boundaries.
func Conclude(neutral, maxRange, minRange InputRange, fullRange uint16) (Result, string, error) {
	if maxRange.Intersects(minRange) {
		return Result{}, "", reject(ErrRangesIntersect,
			"The values sampled for the minimum input (%s) and the maximum input (%s) intersect. "+
				"Make sure to move the input to its extremes and try again.",
			minRange, maxRange)
	}
	if maxRange.Intersects(neutral) && minRange.Intersects(neutral) {
		return Result{}, "", reject(ErrBothNearNeutral,
			"The values sampled for the minimum input (%s) and the maximum input (%s) are both "+
				"too close to the neutral input (%s).",
			minRange, maxRange, neutral)
	}

	res := Result{
		Invert:          minRange.IsEntirelyAbove(maxRange),
		InputNeutralMin: neutral.Min,
		InputNeutralMax: neutral.Max,
	}
	upper, lower := maxRange, minRange
	if res.Invert {
		upper, lower = minRange, maxRange
	}

	if (upper.IsEntirelyAbove(neutral) && lower.IsEntirelyAbove(neutral)) ||
		(neutral.IsEntirelyAbove(upper) && neutral.IsEntirelyAbove(lower)) {
		return Result{}, "", reject(ErrSameSideOfNeutral,
			"The values sampled for the minimum input (%s) and the maximum input (%s) are on "+
				"the same side of the neutral input (%s).",
			minRange, maxRange, neutral)
	}

	var warnings []string
	if maxRange.Intersects(neutral) {
		warnings = append(warnings, fmt.Sprintf(
			"The values sampled for the maximum input (%s) are close to the neutral input (%s), "+
				"so the input will only work in one direction. If that is intended, set the "+
				"target maximum to 0.", maxRange, neutral))
	}
	if minRange.Intersects(neutral) {
		warnings = append(warnings, fmt.Sprintf(
			"The values sampled for the minimum input (%s) are close to the neutral input (%s), "+
				"so the input will only work in one direction. If that is intended, set the "+
				"target minimum to 0.", minRange, neutral))
	}

	maxMargin := (uint32(fullRange) + 50) / 100

	if upper.Intersects(neutral) {
		res.InputMax = neutral.Max
	} else {
		margin := (uint32(upper.Min-neutral.Max) + 15) / 30
		if margin > maxMargin {
			margin = maxMargin
		}
		res.InputMax = upper.Min - uint16(margin)
	}

	if lower.Intersects(neutral) {
		res.InputMin = neutral.Min
	} else {
		margin := (uint32(neutral.Min-lower.Max) + 15) / 30
		if margin > maxMargin {
			margin = maxMargin
		}
		res.InputMin = lower.Max + uint16(margin)
	}

	return res, strings.Join(warnings, "\n\n"), nil
}
