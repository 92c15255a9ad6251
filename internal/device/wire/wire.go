// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire encodes Tic serial commands and decodes the variable and
// settings blocks the Tic returns. The layouts are shared by the serial and
// I2C transports.
package wire

import (
	"encoding/binary"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

// Command codes.
const (
	CmdSetTargetPosition         byte = 0xE0
	CmdSetTargetVelocity         byte = 0xE3
	CmdHaltAndSetPosition        byte = 0xEC
	CmdHaltAndHold               byte = 0x89
	CmdGoHome                    byte = 0x97
	CmdResetCommandTimeout       byte = 0x8C
	CmdDeenergize                byte = 0x86
	CmdEnergize                  byte = 0x85
	CmdExitSafeStart             byte = 0x83
	CmdClearDriverError          byte = 0x8A
	CmdSetSpeedMax               byte = 0xE6
	CmdSetStartingSpeed          byte = 0xE5
	CmdSetAccelMax               byte = 0xEA
	CmdSetDecelMax               byte = 0xE9
	CmdSetStepMode               byte = 0x94
	CmdSetCurrentLimit           byte = 0x91
	CmdSetDecayMode              byte = 0x92
	CmdSetAGCOption              byte = 0x98
	CmdGetVariable               byte = 0xA1
	CmdGetVariableAndClearErrors byte = 0xA2
	CmdGetSetting                byte = 0xA8
)

// pololuStart opens a Pololu protocol frame addressed by device number.
const pololuStart = 0xAA

// MaxBlockLength is the longest block a single read returns.
const MaxBlockLength = 15

// Encoder builds command frames. A negative DeviceNumber selects the compact
// protocol; otherwise frames use the Pololu protocol addressed to that
// device number.
type Encoder struct {
	DeviceNumber int
}

func (e Encoder) frame(cmd byte, data ...byte) []byte {
	if e.DeviceNumber < 0 {
		return append([]byte{cmd}, data...)
	}
	return append([]byte{pololuStart, byte(e.DeviceNumber) & 0x7F, cmd & 0x7F}, data...)
}

// Quick is a command without data.
func (e Encoder) Quick(cmd byte) []byte { return e.frame(cmd) }

// Write7 is a command with one 7-bit data byte.
func (e Encoder) Write7(cmd, data byte) []byte { return e.frame(cmd, data&0x7F) }

// Write32 is a command with a 32-bit value. The most significant bit of
// each little-endian byte moves into a leading byte so every data byte stays
// below 0x80.
func (e Encoder) Write32(cmd byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	var msbs byte
	for i := range b {
		msbs |= (b[i] >> 7) << i
		b[i] &= 0x7F
	}
	return e.frame(cmd, msbs, b[0], b[1], b[2], b[3])
}

// Read is a block read of length bytes starting at offset.
func (e Encoder) Read(cmd, offset, length byte) []byte {
	return e.frame(cmd, offset&0x7F, length)
}

// Block is a contiguous region of the variables or settings.
type Block struct {
	Offset byte
	Length byte
}

// VariablesLength is the size of the variable area.
const VariablesLength = 0x5A

// VariableBlocks covers the variable area in reads the device accepts. The
// first block holds the errors-occurred register.
var VariableBlocks = []Block{
	{0x00, 15}, {0x0F, 15}, {0x1E, 15}, {0x2D, 15}, {0x3C, 15}, {0x4B, 15},
}

// Variable offsets.
const (
	offOperationState       = 0x00
	offMiscFlags            = 0x01
	offErrorStatus          = 0x02
	offErrorsOccurred       = 0x04
	offPlanningMode         = 0x09
	offTargetPosition       = 0x0A
	offTargetVelocity       = 0x0E
	offStartingSpeed        = 0x12
	offSpeedMax             = 0x16
	offDecelMax             = 0x1A
	offAccelMax             = 0x1E
	offCurrentPosition      = 0x22
	offCurrentVelocity      = 0x26
	offActingTargetPosition = 0x2A
	offTimeSinceLastStep    = 0x2E
	offDeviceReset          = 0x32
	offVinVoltage           = 0x33
	offUpTime               = 0x35
	offEncoderPosition      = 0x39
	offRCPulseWidth         = 0x3D
	offAnalogReadingSCL     = 0x3F
	offAnalogReadingSDA     = 0x41
	offAnalogReadingTX      = 0x43
	offAnalogReadingRX      = 0x45
	offDigitalReadings      = 0x47
	offPinStates            = 0x48
	offStepMode             = 0x49
	offCurrentLimit         = 0x4A
	offDecayMode            = 0x4B
	offInputState           = 0x4C
	offInputAfterAveraging  = 0x4D
	offInputAfterHysteresis = 0x4F
	offInputAfterScaling    = 0x51
	offLastMotorDriverError = 0x55
	offAGCMode              = 0x56
)

// Misc flags bits.
const (
	flagEnergized = 1 << iota
	flagPositionUncertain
	flagForwardLimitActive
	flagReverseLimitActive
	flagHomingActive
)

// DecodeVariables decodes the variable area. buf must be VariablesLength
// bytes long.
func DecodeVariables(buf []byte, product tic.Product) tic.Variables {
	u16 := func(o int) uint16 { return binary.LittleEndian.Uint16(buf[o:]) }
	u32 := func(o int) uint32 { return binary.LittleEndian.Uint32(buf[o:]) }
	flags := buf[offMiscFlags]

	return tic.Variables{
		OperationState:     tic.OperationState(buf[offOperationState]),
		Energized:          flags&flagEnergized != 0,
		PositionUncertain:  flags&flagPositionUncertain != 0,
		ForwardLimitActive: flags&flagForwardLimitActive != 0,
		ReverseLimitActive: flags&flagReverseLimitActive != 0,
		HomingActive:       flags&flagHomingActive != 0,

		ErrorStatus:    u16(offErrorStatus),
		ErrorsOccurred: u32(offErrorsOccurred),

		PlanningMode:         tic.PlanningMode(buf[offPlanningMode]),
		TargetPosition:       int32(u32(offTargetPosition)),
		TargetVelocity:       int32(u32(offTargetVelocity)),
		StartingSpeed:        u32(offStartingSpeed),
		MaxSpeed:             u32(offSpeedMax),
		MaxDecel:             u32(offDecelMax),
		MaxAccel:             u32(offAccelMax),
		CurrentPosition:      int32(u32(offCurrentPosition)),
		CurrentVelocity:      int32(u32(offCurrentVelocity)),
		ActingTargetPosition: int32(u32(offActingTargetPosition)),
		TimeSinceLastStep:    u32(offTimeSinceLastStep),

		DeviceReset: buf[offDeviceReset],
		VinVoltage:  u16(offVinVoltage),
		UpTime:      u32(offUpTime),

		EncoderPosition:  int32(u32(offEncoderPosition)),
		RCPulseWidth:     u16(offRCPulseWidth),
		AnalogReadingSCL: u16(offAnalogReadingSCL),
		AnalogReadingSDA: u16(offAnalogReadingSDA),
		AnalogReadingTX:  u16(offAnalogReadingTX),
		AnalogReadingRX:  u16(offAnalogReadingRX),
		DigitalReadings:  buf[offDigitalReadings],
		PinStates:        buf[offPinStates],

		StepMode:     tic.StepMode(buf[offStepMode]),
		CurrentLimit: product.CurrentLimitFromCode(buf[offCurrentLimit]),
		DecayMode:    tic.DecayMode(buf[offDecayMode]),
		AGCMode:      tic.AGCMode(buf[offAGCMode] & 0x0F),

		InputState:           tic.InputState(buf[offInputState]),
		InputAfterAveraging:  u16(offInputAfterAveraging),
		InputAfterHysteresis: u16(offInputAfterHysteresis),
		InputAfterScaling:    int32(u32(offInputAfterScaling)),

		LastMotorDriverError: buf[offLastMotorDriverError],
	}
}

// SettingsImageLength is the size of the settings area this package reads.
const SettingsImageLength = 0x36

// SettingsBlocks are the settings regions read with CmdGetSetting.
var SettingsBlocks = []Block{{0x01, 10}, {0x20, 15}, {0x2F, 7}}

// Setting offsets.
const (
	setControlMode           = 0x01
	setNeverSleep            = 0x02
	setDisableSafeStart      = 0x03
	setIgnoreErrLineHigh     = 0x04
	setSerialDeviceNumber    = 0x07
	setAutoClearDriverError  = 0x08
	setCommandTimeout        = 0x09
	setInputScalingDegree    = 0x20
	setInputInvert           = 0x21
	setInputMin              = 0x22
	setInputNeutralMin       = 0x24
	setInputNeutralMax       = 0x26
	setInputMax              = 0x28
	setOutputMin             = 0x2A
	setInputAveragingEnabled = 0x2E
	setInputHysteresis       = 0x2F
	setOutputMax             = 0x32
)

// DecodeSettings builds settings from the settings image and the runtime
// values in vars. Settings the image does not cover keep the product's
// defaults.
func DecodeSettings(img []byte, vars tic.Variables, product tic.Product) tic.Settings {
	u16 := func(o int) uint16 { return binary.LittleEndian.Uint16(img[o:]) }
	u32 := func(o int) uint32 { return binary.LittleEndian.Uint32(img[o:]) }

	s := tic.DefaultSettings(product)
	s.ControlMode = tic.ControlMode(img[setControlMode])
	s.NeverSleep = img[setNeverSleep]&1 != 0
	s.DisableSafeStart = img[setDisableSafeStart]&1 != 0
	s.IgnoreErrLineHigh = img[setIgnoreErrLineHigh]&1 != 0
	s.SerialDeviceNumber = uint16(img[setSerialDeviceNumber] & 0x7F)
	s.AutoClearDriverError = img[setAutoClearDriverError]&1 != 0
	s.CommandTimeout = u16(setCommandTimeout)

	s.InputScalingDegree = img[setInputScalingDegree]
	s.InputInvert = img[setInputInvert]&1 != 0
	s.InputMin = u16(setInputMin)
	s.InputNeutralMin = u16(setInputNeutralMin)
	s.InputNeutralMax = u16(setInputNeutralMax)
	s.InputMax = u16(setInputMax)
	s.OutputMin = int32(u32(setOutputMin))
	s.InputAveragingEnabled = img[setInputAveragingEnabled]&1 != 0
	s.InputHysteresis = u16(setInputHysteresis)
	s.OutputMax = int32(u32(setOutputMax))

	s.MaxSpeed = vars.MaxSpeed
	s.StartingSpeed = vars.StartingSpeed
	s.MaxAccel = vars.MaxAccel
	s.MaxDecel = vars.MaxDecel
	s.StepMode = vars.StepMode
	s.CurrentLimit = vars.CurrentLimit
	s.DecayMode = vars.DecayMode
	s.AGCMode = vars.AGCMode
	return s
}

// RuntimeSettings encodes the settings the device accepts at runtime. The
// remaining settings can only be changed over USB.
func (e Encoder) RuntimeSettings(s tic.Settings, product tic.Product) [][]byte {
	frames := [][]byte{
		e.Write32(CmdSetSpeedMax, s.MaxSpeed),
		e.Write32(CmdSetStartingSpeed, s.StartingSpeed),
		e.Write32(CmdSetAccelMax, s.MaxAccel),
		e.Write32(CmdSetDecelMax, s.MaxDecel),
		e.Write7(CmdSetStepMode, byte(s.StepMode)),
		e.Write7(CmdSetCurrentLimit, product.CurrentLimitCode(s.CurrentLimit)),
	}
	if product.HasDecayMode() {
		frames = append(frames, e.Write7(CmdSetDecayMode, byte(s.DecayMode)))
	}
	if product.HasAGC() {
		frames = append(frames, e.Write7(CmdSetAGCOption, byte(s.AGCMode)&0x0F))
	}
	return frames
}
