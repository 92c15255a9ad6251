// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import "github.com/relabs-tech/tic_controller/internal/tic"

// fieldRule enables a settings field when its predicate holds. Fields not
// listed here are enabled whenever a device is connected.
type fieldRule struct {
	field   string
	enabled func(s tic.Settings) bool
}

func usesInput(s tic.Settings) bool { return s.ControlMode.UsesInputScaling() }
func hasAGC(s tic.Settings) bool    { return s.Product.HasAGC() }
func agcOn(s tic.Settings) bool     { return s.Product.HasAGC() && s.AGCMode != tic.AGCOff }

var fieldRules = []fieldRule{
	{"input_invert", usesInput},
	{"input_min", usesInput},
	{"input_neutral_min", usesInput},
	{"input_neutral_max", usesInput},
	{"input_max", usesInput},
	{"input_averaging_enabled", usesInput},
	{"input_hysteresis", usesInput},
	{"input_scaling_degree", usesInput},
	{"input_error_min", usesInput},
	{"input_error_max", usesInput},
	{"output_min", usesInput},
	{"output_max", usesInput},
	{"input_learn", func(s tic.Settings) bool { return s.ControlMode.IsRC() || s.ControlMode.IsAnalog() }},

	{"encoder_prescaler", func(s tic.Settings) bool { return s.ControlMode.IsEncoder() }},
	{"encoder_postscaler", func(s tic.Settings) bool { return s.ControlMode.IsEncoder() }},
	{"encoder_unlimited", func(s tic.Settings) bool { return s.ControlMode.IsEncoder() }},

	{"rc_max_pulse_period", func(s tic.Settings) bool { return s.ControlMode.IsRC() }},
	{"rc_bad_signal_timeout", func(s tic.Settings) bool { return s.ControlMode.IsRC() }},
	{"rc_consecutive_good_pulses", func(s tic.Settings) bool { return s.ControlMode.IsRC() }},

	{"serial_alt_device_number", func(s tic.Settings) bool { return s.SerialEnableAltDeviceNumber }},
	{"soft_error_position", func(s tic.Settings) bool { return s.SoftErrorResponse == tic.SoftErrorGoToPosition }},
	{"auto_homing_forward", func(s tic.Settings) bool { return s.AutoHomingEnabled }},
	{"decay_mode", func(s tic.Settings) bool { return s.Product.HasDecayMode() }},

	{"agc_mode", hasAGC},
	{"agc_bottom_current_limit", agcOn},
	{"agc_current_boost_steps", agcOn},
	{"agc_frequency_limit", agcOn},
}

// fieldEnabled evaluates every rule against s.
func fieldEnabled(s tic.Settings, connected bool) map[string]bool {
	out := make(map[string]bool, len(fieldRules))
	for _, r := range fieldRules {
		out[r.field] = connected && r.enabled(s)
	}
	return out
}
