// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ControlMode selects the command source that drives the motor.
type ControlMode uint8

const (
	ControlSerial ControlMode = iota
	ControlStepDir
	ControlRCPosition
	ControlRCSpeed
	ControlAnalogPosition
	ControlAnalogSpeed
	ControlEncoderPosition
	ControlEncoderSpeed
)

var controlModeNames = []string{
	"serial",
	"step_dir",
	"rc_position",
	"rc_speed",
	"analog_position",
	"analog_speed",
	"encoder_position",
	"encoder_speed",
}

func (m ControlMode) String() string {
	if int(m) < len(controlModeNames) {
		return controlModeNames[m]
	}
	return fmt.Sprintf("control_mode(%d)", m)
}

func (m ControlMode) IsSerial() bool  { return m == ControlSerial }
func (m ControlMode) IsRC() bool      { return m == ControlRCPosition || m == ControlRCSpeed }
func (m ControlMode) IsAnalog() bool  { return m == ControlAnalogPosition || m == ControlAnalogSpeed }
func (m ControlMode) IsEncoder() bool { return m == ControlEncoderPosition || m == ControlEncoderSpeed }

// UsesInputScaling reports whether the input_* and output_* settings apply.
func (m ControlMode) UsesInputScaling() bool {
	return m.IsRC() || m.IsAnalog() || m.IsEncoder()
}

// IsSpeed reports whether the scaled input is a target velocity.
func (m ControlMode) IsSpeed() bool {
	return m == ControlRCSpeed || m == ControlAnalogSpeed || m == ControlEncoderSpeed
}

func ParseControlMode(s string) (ControlMode, error) {
	for i, name := range controlModeNames {
		if name == s {
			return ControlMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown control mode %q", s)
}

func (m ControlMode) MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *ControlMode) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseControlMode(node.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// StepMode is the number of microsteps per full step, encoded as on the device.
type StepMode uint8

const (
	StepModeFull StepMode = iota
	StepModeHalf
	StepMode4
	StepMode8
	StepMode16
	StepMode32
	StepMode2At100
	StepMode64
	StepMode128
	StepMode256
)

// DecayMode is the driver current decay mode, encoded as on the device.
type DecayMode uint8

const (
	DecayMixed DecayMode = iota
	DecaySlow
	DecayFast
	DecayMixed25
	DecayMixed75

	// DecayMixed50 is the Tic T834's name for DecayMixed.
	DecayMixed50 = DecayMixed
)

// SoftErrorResponse is what the Tic does when a soft error occurs.
type SoftErrorResponse uint8

const (
	SoftErrorDeenergize SoftErrorResponse = iota
	SoftErrorHaltAndHold
	SoftErrorDecelToHold
	SoftErrorGoToPosition
)

// AGCMode controls active gain control on the Tic T249.
type AGCMode uint8

const (
	AGCOff AGCMode = iota
	AGCOn
	AGCActiveOff
)

// PinFunc is the function assigned to one of the Tic's control pins.
type PinFunc uint8

const (
	PinFuncDefault PinFunc = iota
	PinFuncUserIO
	PinFuncUserInput
	PinFuncPotPower
	PinFuncSerial
	PinFuncRC
	PinFuncEncoder
	PinFuncLimitForward
	PinFuncLimitReverse
	PinFuncHome
	PinFuncKillSwitch
)

var pinFuncNames = []string{
	"default",
	"user_io",
	"user_input",
	"pot_power",
	"serial",
	"rc",
	"encoder",
	"limit_switch_forward",
	"limit_switch_reverse",
	"home",
	"kill_switch",
}

func (f PinFunc) String() string {
	if int(f) < len(pinFuncNames) {
		return pinFuncNames[f]
	}
	return fmt.Sprintf("pin_func(%d)", f)
}

func (f PinFunc) MarshalYAML() (interface{}, error) { return f.String(), nil }

func (f *PinFunc) UnmarshalYAML(node *yaml.Node) error {
	for i, name := range pinFuncNames {
		if name == node.Value {
			*f = PinFunc(i)
			return nil
		}
	}
	return fmt.Errorf("unknown pin function %q", node.Value)
}

// OperationState is the top-level state reported in the variables.
type OperationState uint8

const (
	OperationReset             OperationState = 0
	OperationDeenergized       OperationState = 2
	OperationSoftError         OperationState = 4
	OperationWaitingForErrLine OperationState = 6
	OperationStartingUp        OperationState = 8
	OperationNormal            OperationState = 10
)

func (s OperationState) String() string {
	switch s {
	case OperationReset:
		return "Reset"
	case OperationDeenergized:
		return "De-energized"
	case OperationSoftError:
		return "Soft error"
	case OperationWaitingForErrLine:
		return "Waiting for ERR line"
	case OperationStartingUp:
		return "Starting up"
	case OperationNormal:
		return "Normal"
	}
	return fmt.Sprintf("Unknown (%d)", uint8(s))
}

// PlanningMode tells whether the Tic is moving toward a target position,
// a target velocity, or neither.
type PlanningMode uint8

const (
	PlanningOff PlanningMode = iota
	PlanningTargetPosition
	PlanningTargetVelocity
)

func (m PlanningMode) String() string {
	switch m {
	case PlanningOff:
		return "Off"
	case PlanningTargetPosition:
		return "Target position"
	case PlanningTargetVelocity:
		return "Target velocity"
	}
	return fmt.Sprintf("Unknown (%d)", uint8(m))
}

// InputState is the state of the input pipeline in RC, analog and encoder modes.
type InputState uint8

const (
	InputNotReady InputState = iota
	InputInvalid
	InputHalt
	InputPosition
	InputVelocity
)

// HomeDirection selects which limit switch a homing run looks for.
type HomeDirection uint8

const (
	HomeReverse HomeDirection = iota
	HomeForward
)

func (d HomeDirection) String() string {
	if d == HomeForward {
		return "forward"
	}
	return "reverse"
}
