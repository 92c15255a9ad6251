// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import "fmt"

// ErrorKind is one of the errors a Tic can report in its error status or
// errors-occurred registers.
type ErrorKind uint8

const (
	ErrorIntentionallyDeenergized ErrorKind = iota
	ErrorMotorDriverError
	ErrorLowVin
	ErrorKillSwitch
	ErrorRequiredInputInvalid
	ErrorSerialError
	ErrorCommandTimeout
	ErrorSafeStartViolation
	ErrorErrLineHigh
	ErrorSerialFraming
	ErrorSerialRxOverrun
	ErrorSerialFormat
	ErrorSerialCRC
	ErrorEncoderSkip
)

// ErrorInfo is the display metadata for an ErrorKind.
type ErrorInfo struct {
	Bit  uint8
	Name string
	// Stopping errors stop the motor while they are active. The others are
	// only ever reported through the errors-occurred register.
	Stopping bool
}

var errorInfo = map[ErrorKind]ErrorInfo{
	ErrorIntentionallyDeenergized: {Bit: 0, Name: "Intentionally de-energized", Stopping: true},
	ErrorMotorDriverError:         {Bit: 1, Name: "Motor driver error", Stopping: true},
	ErrorLowVin:                   {Bit: 2, Name: "Low VIN", Stopping: true},
	ErrorKillSwitch:               {Bit: 3, Name: "Kill switch active", Stopping: true},
	ErrorRequiredInputInvalid:     {Bit: 4, Name: "Required input invalid", Stopping: true},
	ErrorSerialError:              {Bit: 5, Name: "Serial error", Stopping: true},
	ErrorCommandTimeout:           {Bit: 6, Name: "Command timeout", Stopping: true},
	ErrorSafeStartViolation:       {Bit: 7, Name: "Safe start violation", Stopping: true},
	ErrorErrLineHigh:              {Bit: 8, Name: "ERR line high", Stopping: true},
	ErrorSerialFraming:            {Bit: 16, Name: "Serial framing"},
	ErrorSerialRxOverrun:          {Bit: 17, Name: "Serial RX overrun"},
	ErrorSerialFormat:             {Bit: 18, Name: "Serial format"},
	ErrorSerialCRC:                {Bit: 19, Name: "Serial CRC"},
	ErrorEncoderSkip:              {Bit: 20, Name: "Encoder skip"},
}

// ErrorKinds lists every kind in display order.
func ErrorKinds() []ErrorKind {
	out := make([]ErrorKind, 0, len(errorInfo))
	for k := ErrorIntentionallyDeenergized; k <= ErrorEncoderSkip; k++ {
		out = append(out, k)
	}
	return out
}

func (k ErrorKind) Info() ErrorInfo {
	return errorInfo[k]
}

// Mask is the kind's bit in the error status and errors-occurred registers.
func (k ErrorKind) Mask() uint32 {
	info, ok := errorInfo[k]
	if !ok {
		return 0
	}
	return 1 << info.Bit
}

func (k ErrorKind) String() string {
	if info, ok := errorInfo[k]; ok {
		return info.Name
	}
	return fmt.Sprintf("error(%d)", uint8(k))
}

// ActiveErrors returns the kinds whose bit is set in mask, in display order.
func ActiveErrors(mask uint32) []ErrorKind {
	var out []ErrorKind
	for _, k := range ErrorKinds() {
		if mask&k.Mask() != 0 {
			out = append(out, k)
		}
	}
	return out
}

// ErrorMask builds a register value from kinds.
func ErrorMask(kinds ...ErrorKind) uint32 {
	var m uint32
	for _, k := range kinds {
		m |= k.Mask()
	}
	return m
}
