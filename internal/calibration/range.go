// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"fmt"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

// maxInputValue is the largest raw input reading.
const maxInputValue = 4095

// InputRange summarizes the readings taken while the input was held still.
type InputRange struct {
	Min     uint16 `json:"min"`
	Max     uint16 `json:"max"`
	Average uint16 `json:"average"`
}

// RangeFromSamples returns the extrema and rounded average of samples.
func RangeFromSamples(samples []uint16) InputRange {
	if len(samples) == 0 {
		return InputRange{}
	}
	r := InputRange{Min: samples[0], Max: samples[0]}
	var sum uint64
	for _, s := range samples {
		if s < r.Min {
			r.Min = s
		}
		if s > r.Max {
			r.Max = s
		}
		sum += uint64(s)
	}
	n := uint64(len(samples))
	r.Average = uint16((sum + n/2) / n)
	return r
}

// Range is the spread between the smallest and largest reading.
func (r InputRange) Range() uint16 { return r.Max - r.Min }

// DistanceTo is the gap between the nearest edges of r and o, or 0 if they
// overlap or share an edge.
func (r InputRange) DistanceTo(o InputRange) uint16 {
	switch {
	case o.Min > r.Max:
		return o.Min - r.Max
	case r.Min > o.Max:
		return r.Min - o.Max
	}
	return 0
}

func (r InputRange) Intersects(o InputRange) bool { return r.DistanceTo(o) == 0 }

// IsEntirelyAbove reports whether every value of r is above every value of o.
func (r InputRange) IsEntirelyAbove(o InputRange) bool { return r.Min > o.Max }

func (r InputRange) String() string { return fmt.Sprintf("%d to %d", r.Min, r.Max) }

// StandardFullRange is the span of raw readings a full sweep of the input
// produces in the given control mode.
func StandardFullRange(mode tic.ControlMode) (uint16, error) {
	switch {
	case mode.IsRC():
		return 1500, nil
	case mode.IsAnalog():
		return maxInputValue, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedControlMode, mode)
}

// CheckSpread rejects a range wider than 7.5% of fullRange.
func CheckSpread(r InputRange, fullRange uint16) error {
	if uint32(r.Range())*1000 <= uint32(fullRange)*75 {
		return nil
	}
	return reject(ErrRangeTooWide,
		"The input value varied too widely (between %d and %d) during the sampling time. "+
			"Please hold the input still and try again so an accurate reading can be obtained.",
		r.Min, r.Max)
}

// WidenNeutral turns the sampled neutral range into the deadband: a range
// centered on the sampled average with a half-width of 5% of fullRange or
// three times the sampled spread, whichever is larger.
func WidenNeutral(r InputRange, fullRange uint16) InputRange {
	half := (uint32(fullRange)*5 + 50) / 100
	if spread := 3 * uint32(r.Range()); spread > half {
		half = spread
	}
	if half > maxInputValue/2 {
		half = maxInputValue / 2
	}
	return WidenAndCenter(r, uint16(2*half))
}

// WidenAndCenter returns a range of exactly width centered on r.Average.
// The center is clamped so the range fits in the input domain, which makes
// the result asymmetric around the sampled average near the rails.
func WidenAndCenter(r InputRange, width uint16) InputRange {
	if width > maxInputValue {
		width = maxInputValue
	}
	half := width / 2
	center := r.Average
	if center < half {
		center = half
	}
	if center > maxInputValue-half {
		center = maxInputValue - half
	}
	out := InputRange{Min: center - half, Max: center + half, Average: center}
	if out.Max-out.Min < width {
		if out.Min > 0 {
			out.Min--
		} else {
			out.Max++
		}
	}
	return out
}
