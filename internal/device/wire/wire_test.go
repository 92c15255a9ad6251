// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"encoding/binary"
	"testing"

	"github.com/matryer/is"

	"github.com/relabs-tech/tic_controller/internal/tic"
)

func TestCompactFrames(t *testing.T) {
	is := is.New(t)
	e := Encoder{DeviceNumber: -1}

	is.Equal(e.Quick(CmdEnergize), []byte{0x85})
	is.Equal(e.Write7(CmdGoHome, 1), []byte{0x97, 0x01})
	is.Equal(e.Write7(CmdSetStepMode, 0xFF), []byte{0x94, 0x7F})
	is.Equal(e.Write32(CmdSetTargetPosition, 0x12345678), []byte{0xE0, 0x00, 0x78, 0x56, 0x34, 0x12})
	is.Equal(e.Write32(CmdSetTargetPosition, uint32(0xFFFFFF38)), []byte{0xE0, 0x0E, 0x38, 0x7F, 0x7F, 0x7F})
	is.Equal(e.Read(CmdGetVariable, 0x4D, 2), []byte{0xA1, 0x4D, 0x02})
}

func TestPololuFrames(t *testing.T) {
	is := is.New(t)
	e := Encoder{DeviceNumber: 14}

	is.Equal(e.Quick(CmdEnergize), []byte{0xAA, 0x0E, 0x05})
	is.Equal(e.Write32(CmdSetTargetPosition, uint32(0xFFFFFF38)),
		[]byte{0xAA, 0x0E, 0x60, 0x0E, 0x38, 0x7F, 0x7F, 0x7F})
	is.Equal(e.Read(CmdGetSetting, 0x20, 15), []byte{0xAA, 0x0E, 0x28, 0x20, 0x0F})
}

func TestWrite32KeepsDataBytesBelow0x80(t *testing.T) {
	is := is.New(t)
	e := Encoder{DeviceNumber: -1}

	for _, v := range []uint32{0, 1, 0x80, 0xFF, 0x8080_8080, 0xFFFF_FFFF, 500000000} {
		frame := e.Write32(CmdSetSpeedMax, v)
		is.Equal(len(frame), 6)
		var b [4]byte
		for i := range b {
			is.True(frame[2+i] < 0x80)
			b[i] = frame[2+i] | (frame[1]>>i&1)<<7
		}
		is.Equal(binary.LittleEndian.Uint32(b[:]), v)
	}
}

func TestVariableBlocksCoverTheArea(t *testing.T) {
	is := is.New(t)
	next := byte(0)
	for _, b := range VariableBlocks {
		is.Equal(b.Offset, next)
		is.True(b.Length <= MaxBlockLength)
		next += b.Length
	}
	is.Equal(int(next), VariablesLength)
}

func TestDecodeVariables(t *testing.T) {
	is := is.New(t)
	buf := make([]byte, VariablesLength)
	buf[offOperationState] = byte(tic.OperationNormal)
	buf[offMiscFlags] = flagEnergized | flagForwardLimitActive
	binary.LittleEndian.PutUint16(buf[offErrorStatus:], uint16(tic.ErrorMask(tic.ErrorCommandTimeout)))
	binary.LittleEndian.PutUint32(buf[offErrorsOccurred:], tic.ErrorMask(tic.ErrorSerialCRC))
	buf[offPlanningMode] = byte(tic.PlanningTargetPosition)
	binary.LittleEndian.PutUint32(buf[offTargetPosition:], uint32(0xFFFFFF9C)) // -100
	binary.LittleEndian.PutUint32(buf[offSpeedMax:], 2000000)
	binary.LittleEndian.PutUint16(buf[offVinVoltage:], 12345)
	buf[offStepMode] = byte(tic.StepMode8)
	buf[offCurrentLimit] = 6
	binary.LittleEndian.PutUint16(buf[offInputAfterAveraging:], tic.InputNull)
	binary.LittleEndian.PutUint32(buf[offInputAfterScaling:], uint32(0xFFFFFFFF))

	v := DecodeVariables(buf, tic.ProductT825)

	is.Equal(v.OperationState, tic.OperationNormal)
	is.True(v.Energized)
	is.True(v.ForwardLimitActive)
	is.True(!v.ReverseLimitActive)
	is.True(v.HasError(tic.ErrorCommandTimeout))
	is.Equal(v.ErrorsOccurred, tic.ErrorMask(tic.ErrorSerialCRC))
	is.Equal(v.PlanningMode, tic.PlanningTargetPosition)
	is.Equal(v.TargetPosition, int32(-100))
	is.Equal(v.MaxSpeed, uint32(2000000))
	is.Equal(v.VinVoltage, uint16(12345))
	is.Equal(v.StepMode, tic.StepMode8)
	is.Equal(v.CurrentLimit, uint32(192))
	is.Equal(v.InputAfterAveraging, tic.InputNull)
	is.Equal(v.InputAfterScaling, int32(-1))
}

func TestDecodeSettings(t *testing.T) {
	is := is.New(t)
	img := make([]byte, SettingsImageLength)
	img[setControlMode] = byte(tic.ControlRCPosition)
	img[setDisableSafeStart] = 1
	img[setSerialDeviceNumber] = 14
	binary.LittleEndian.PutUint16(img[setCommandTimeout:], 1000)
	img[setInputInvert] = 1
	binary.LittleEndian.PutUint16(img[setInputMin:], 141)
	binary.LittleEndian.PutUint16(img[setInputNeutralMin:], 1843)
	binary.LittleEndian.PutUint16(img[setInputNeutralMax:], 2253)
	binary.LittleEndian.PutUint16(img[setInputMax:], 3959)
	binary.LittleEndian.PutUint32(img[setOutputMin:], uint32(0xFFFFFF38)) // -200
	binary.LittleEndian.PutUint32(img[setOutputMax:], 200)
	vars := tic.Variables{MaxSpeed: 4000000, MaxAccel: 20000, StepMode: tic.StepModeHalf, CurrentLimit: 640}

	s := DecodeSettings(img, vars, tic.ProductT834)

	is.Equal(s.Product, tic.ProductT834)
	is.Equal(s.ControlMode, tic.ControlRCPosition)
	is.True(s.DisableSafeStart)
	is.Equal(s.SerialDeviceNumber, uint16(14))
	is.Equal(s.CommandTimeout, uint16(1000))
	is.True(s.InputInvert)
	is.Equal(s.InputMin, uint16(141))
	is.Equal(s.InputNeutralMin, uint16(1843))
	is.Equal(s.InputNeutralMax, uint16(2253))
	is.Equal(s.InputMax, uint16(3959))
	is.Equal(s.OutputMin, int32(-200))
	is.Equal(s.OutputMax, int32(200))
	is.Equal(s.MaxSpeed, uint32(4000000))
	is.Equal(s.StepMode, tic.StepModeHalf)
	is.Equal(s.CurrentLimit, uint32(640))
}

func TestRuntimeSettingsPerProduct(t *testing.T) {
	is := is.New(t)
	e := Encoder{DeviceNumber: -1}

	is.Equal(len(e.RuntimeSettings(tic.DefaultSettings(tic.ProductT500), tic.ProductT500)), 6)
	is.Equal(len(e.RuntimeSettings(tic.DefaultSettings(tic.ProductT825), tic.ProductT825)), 7)

	frames := e.RuntimeSettings(tic.DefaultSettings(tic.ProductT249), tic.ProductT249)
	is.Equal(len(frames), 7)
	is.Equal(frames[5], []byte{CmdSetCurrentLimit, 5}) // 200 mA in 40 mA steps
	is.Equal(frames[6], []byte{CmdSetAGCOption, 0})
}
