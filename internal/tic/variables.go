// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

// InputNull is the value the Tic reports for an input that has no valid
// reading, such as a missing RC signal.
const InputNull uint16 = 0xFFFF

// Variables is a snapshot of the Tic's runtime state. It holds only values so
// assigning it copies the whole snapshot.
type Variables struct {
	OperationState     OperationState `json:"operation_state"`
	Energized          bool           `json:"energized"`
	PositionUncertain  bool           `json:"position_uncertain"`
	ForwardLimitActive bool           `json:"forward_limit_active"`
	ReverseLimitActive bool           `json:"reverse_limit_active"`
	HomingActive       bool           `json:"homing_active"`

	ErrorStatus    uint16 `json:"error_status"`
	ErrorsOccurred uint32 `json:"errors_occurred"`

	PlanningMode         PlanningMode `json:"planning_mode"`
	TargetPosition       int32        `json:"target_position"`
	TargetVelocity       int32        `json:"target_velocity"`
	StartingSpeed        uint32       `json:"starting_speed"`
	MaxSpeed             uint32       `json:"max_speed"`
	MaxDecel             uint32       `json:"max_decel"`
	MaxAccel             uint32       `json:"max_accel"`
	CurrentPosition      int32        `json:"current_position"`
	CurrentVelocity      int32        `json:"current_velocity"`
	ActingTargetPosition int32        `json:"acting_target_position"`
	TimeSinceLastStep    uint32       `json:"time_since_last_step"`

	DeviceReset uint8  `json:"device_reset"`
	VinVoltage  uint16 `json:"vin_voltage_mv"`
	UpTime      uint32 `json:"up_time_ms"`

	EncoderPosition  int32  `json:"encoder_position"`
	RCPulseWidth     uint16 `json:"rc_pulse_width"`
	AnalogReadingSCL uint16 `json:"analog_reading_scl"`
	AnalogReadingSDA uint16 `json:"analog_reading_sda"`
	AnalogReadingTX  uint16 `json:"analog_reading_tx"`
	AnalogReadingRX  uint16 `json:"analog_reading_rx"`
	DigitalReadings  uint8  `json:"digital_readings"`
	PinStates        uint8  `json:"pin_states"`

	StepMode     StepMode  `json:"step_mode"`
	CurrentLimit uint32    `json:"current_limit_ma"`
	DecayMode    DecayMode `json:"decay_mode"`
	AGCMode      AGCMode   `json:"agc_mode"`

	InputState           InputState `json:"input_state"`
	InputAfterAveraging  uint16     `json:"input_after_averaging"`
	InputAfterHysteresis uint16     `json:"input_after_hysteresis"`
	InputAfterScaling    int32      `json:"input_after_scaling"`

	LastMotorDriverError uint8 `json:"last_motor_driver_error"`
	LastHPDriverErrors   uint8 `json:"last_hp_driver_errors"`
}

// HasError reports whether k is set in the error status register.
func (v Variables) HasError(k ErrorKind) bool {
	return uint32(v.ErrorStatus)&k.Mask() != 0
}

// ActiveErrors returns the kinds set in the error status register.
func (v Variables) ActiveErrors() []ErrorKind {
	return ActiveErrors(uint32(v.ErrorStatus))
}
