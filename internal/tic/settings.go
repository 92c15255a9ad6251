// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import (
	"reflect"
	"strings"
)

// PinSettings configures one control pin.
type PinSettings struct {
	Func          PinFunc `yaml:"func"`
	Pullup        bool    `yaml:"pullup"`
	AnalogEnabled bool    `yaml:"analog"`
	ActiveHigh    bool    `yaml:"active_high"`
}

// Pins holds the configuration of every control pin.
type Pins struct {
	SCL PinSettings `yaml:"scl"`
	SDA PinSettings `yaml:"sda"`
	TX  PinSettings `yaml:"tx"`
	RX  PinSettings `yaml:"rx"`
	RC  PinSettings `yaml:"rc"`
}

// All returns the pins with their names, in connector order.
func (p Pins) All() []NamedPin {
	return []NamedPin{
		{"SCL", p.SCL}, {"SDA", p.SDA}, {"TX", p.TX}, {"RX", p.RX}, {"RC", p.RC},
	}
}

type NamedPin struct {
	Name string
	PinSettings
}

// HasFunc reports whether any pin is assigned f.
func (p Pins) HasFunc(f PinFunc) bool {
	for _, np := range p.All() {
		if np.Func == f {
			return true
		}
	}
	return false
}

// Settings is the complete non-volatile configuration of a Tic. It contains
// no slices, maps or pointers: assigning a Settings value makes an
// independent copy.
type Settings struct {
	Product     Product     `yaml:"product"`
	ControlMode ControlMode `yaml:"control_mode"`

	NeverSleep              bool              `yaml:"never_sleep"`
	DisableSafeStart        bool              `yaml:"disable_safe_start"`
	IgnoreErrLineHigh       bool              `yaml:"ignore_err_line_high"`
	AutoClearDriverError    bool              `yaml:"auto_clear_driver_error"`
	SoftErrorResponse       SoftErrorResponse `yaml:"soft_error_response"`
	SoftErrorPosition       int32             `yaml:"soft_error_position"`
	CurrentLimitDuringError int32             `yaml:"current_limit_during_error"`

	SerialBaudRate              uint32 `yaml:"serial_baud_rate"`
	SerialDeviceNumber          uint16 `yaml:"serial_device_number"`
	SerialAltDeviceNumber       uint16 `yaml:"serial_alt_device_number"`
	SerialEnableAltDeviceNumber bool   `yaml:"serial_enable_alt_device_number"`
	Serial14BitDeviceNumber     bool   `yaml:"serial_14bit_device_number"`
	SerialCRCForCommands        bool   `yaml:"serial_crc_for_commands"`
	SerialCRCForResponses       bool   `yaml:"serial_crc_for_responses"`
	SerialResponseDelay         uint8  `yaml:"serial_response_delay"`
	CommandTimeout              uint16 `yaml:"command_timeout"`

	LowVinTimeout         uint16 `yaml:"low_vin_timeout"`
	LowVinShutoffVoltage  uint16 `yaml:"low_vin_shutoff_voltage"`
	LowVinStartupVoltage  uint16 `yaml:"low_vin_startup_voltage"`
	HighVinShutoffVoltage uint16 `yaml:"high_vin_shutoff_voltage"`
	VinCalibration        int16  `yaml:"vin_calibration"`

	RCMaxPulsePeriod        uint16 `yaml:"rc_max_pulse_period"`
	RCBadSignalTimeout      uint16 `yaml:"rc_bad_signal_timeout"`
	RCConsecutiveGoodPulses uint8  `yaml:"rc_consecutive_good_pulses"`

	InputAveragingEnabled bool   `yaml:"input_averaging_enabled"`
	InputHysteresis       uint16 `yaml:"input_hysteresis"`
	InputErrorMin         uint16 `yaml:"input_error_min"`
	InputErrorMax         uint16 `yaml:"input_error_max"`
	InputScalingDegree    uint8  `yaml:"input_scaling_degree"`
	InputInvert           bool   `yaml:"input_invert"`
	InputMin              uint16 `yaml:"input_min"`
	InputNeutralMin       uint16 `yaml:"input_neutral_min"`
	InputNeutralMax       uint16 `yaml:"input_neutral_max"`
	InputMax              uint16 `yaml:"input_max"`
	OutputMin             int32  `yaml:"output_min"`
	OutputMax             int32  `yaml:"output_max"`

	EncoderPrescaler  uint32 `yaml:"encoder_prescaler"`
	EncoderPostscaler uint32 `yaml:"encoder_postscaler"`
	EncoderUnlimited  bool   `yaml:"encoder_unlimited"`

	InvertMotorDirection bool      `yaml:"invert_motor_direction"`
	MaxSpeed             uint32    `yaml:"max_speed"`
	StartingSpeed        uint32    `yaml:"starting_speed"`
	MaxAccel             uint32    `yaml:"max_accel"`
	MaxDecel             uint32    `yaml:"max_decel"`
	StepMode             StepMode  `yaml:"step_mode"`
	CurrentLimit         uint32    `yaml:"current_limit"`
	DecayMode            DecayMode `yaml:"decay_mode"`

	AutoHomingEnabled  bool   `yaml:"auto_homing"`
	AutoHomingForward  bool   `yaml:"auto_homing_forward"`
	HomingSpeedTowards uint32 `yaml:"homing_speed_towards"`
	HomingSpeedAway    uint32 `yaml:"homing_speed_away"`

	AGCMode               AGCMode `yaml:"agc_mode"`
	AGCBottomCurrentLimit uint8   `yaml:"agc_bottom_current_limit"`
	AGCCurrentBoostSteps  uint8   `yaml:"agc_current_boost_steps"`
	AGCFrequencyLimit     uint8   `yaml:"agc_frequency_limit"`

	Pins Pins `yaml:"pins"`
}

const (
	maxInput          = 4095
	maxSpeedLimit     = 500000000
	minAccel          = 100
	maxAccelLimit     = 2147483647
	minBaudRate       = 200
	maxBaudRate       = 115385
	maxCommandTimeout = 60000
)

// DefaultSettings returns the factory settings of product.
func DefaultSettings(product Product) Settings {
	s := Settings{
		Product:                 product,
		ControlMode:             ControlSerial,
		SoftErrorResponse:       SoftErrorDecelToHold,
		CurrentLimitDuringError: -1,

		SerialBaudRate:        9600,
		SerialDeviceNumber:    14,
		SerialAltDeviceNumber: 0,
		CommandTimeout:        1000,

		LowVinTimeout:         250,
		LowVinShutoffVoltage:  6000,
		LowVinStartupVoltage:  6500,
		HighVinShutoffVoltage: 35000,

		RCMaxPulsePeriod:        100,
		RCBadSignalTimeout:      500,
		RCConsecutiveGoodPulses: 2,

		InputAveragingEnabled: true,
		InputErrorMin:         0,
		InputErrorMax:         maxInput,
		InputMin:              0,
		InputNeutralMin:       2015,
		InputNeutralMax:       2080,
		InputMax:              maxInput,
		OutputMin:             -200,
		OutputMax:             200,

		EncoderPrescaler:  1,
		EncoderPostscaler: 1,

		MaxSpeed:     2000000,
		MaxAccel:     40000,
		StepMode:     StepModeFull,
		CurrentLimit: product.DefaultCurrentLimit(),
		DecayMode:    DecayMixed,

		HomingSpeedTowards: 1000000,
		HomingSpeedAway:    1000000,
	}
	switch product {
	case Product36v4:
		s.HighVinShutoffVoltage = 55000
	case ProductT834:
		s.DecayMode = DecayMixed50
	}
	s.Pins.SCL.Pullup = true
	s.Pins.SDA.Pullup = true
	s.Pins.TX.Pullup = true
	s.Pins.RX.Pullup = true
	return s
}

// ChangedFields returns the YAML names of the top-level fields that differ
// between a and b, in declaration order.
func ChangedFields(a, b Settings) []string {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	t := va.Type()
	var names []string
	for i := 0; i < t.NumField(); i++ {
		if va.Field(i).Interface() == vb.Field(i).Interface() {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		names = append(names, name)
	}
	return names
}
