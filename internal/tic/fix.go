// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import (
	"fmt"
	"strings"
)

type fixer struct {
	warnings []string
}

func (f *fixer) warn(format string, args ...interface{}) {
	f.warnings = append(f.warnings, "Warning: "+fmt.Sprintf(format, args...))
}

// Fix returns a copy of s with every out-of-range or inconsistent value
// corrected for product, and one warning sentence per correction joined by
// newlines. The receiver is not modified.
func (s Settings) Fix(product Product) (Settings, string) {
	f := &fixer{}
	out := s

	if product != ProductUnknown && out.Product != product {
		if out.Product != ProductUnknown {
			f.warn("The settings were for a %s, so they were converted for a %s.", out.Product, product)
		}
		out.Product = product
	}
	product = out.Product

	fixSerial(f, &out)
	fixVin(f, &out)
	fixInput(f, &out)
	fixMotor(f, &out, product)
	fixHoming(f, &out)
	fixAGC(f, &out, product)
	fixPins(f, &out)

	return out, strings.Join(f.warnings, "\n")
}

func fixSerial(f *fixer, s *Settings) {
	switch {
	case s.SerialBaudRate < minBaudRate:
		f.warn("The serial baud rate is too low, so it will be changed to %d.", minBaudRate)
		s.SerialBaudRate = minBaudRate
	case s.SerialBaudRate > maxBaudRate:
		f.warn("The serial baud rate is too high, so it will be changed to %d.", maxBaudRate)
		s.SerialBaudRate = maxBaudRate
	}

	mask := uint16(0x7F)
	if s.Serial14BitDeviceNumber {
		mask = 0x3FFF
	}
	if s.SerialDeviceNumber&^mask != 0 {
		f.warn("The serial device number is too high, so it will be changed to %d.", s.SerialDeviceNumber&mask)
		s.SerialDeviceNumber &= mask
	}
	if s.SerialAltDeviceNumber&^mask != 0 {
		f.warn("The alternative serial device number is too high, so it will be changed to %d.", s.SerialAltDeviceNumber&mask)
		s.SerialAltDeviceNumber &= mask
	}
	if s.SerialResponseDelay > 250 {
		f.warn("The serial response delay is too high, so it will be changed to 250 us.")
		s.SerialResponseDelay = 250
	}
	if s.CommandTimeout > maxCommandTimeout {
		f.warn("The command timeout is too high, so it will be changed to %d ms.", maxCommandTimeout)
		s.CommandTimeout = maxCommandTimeout
	}
}

func fixVin(f *fixer, s *Settings) {
	if s.LowVinStartupVoltage <= s.LowVinShutoffVoltage {
		f.warn("The low VIN startup voltage is not greater than the low VIN shutoff voltage, so it will be changed to %d mV.", s.LowVinShutoffVoltage+500)
		s.LowVinStartupVoltage = s.LowVinShutoffVoltage + 500
	}
	if s.HighVinShutoffVoltage <= s.LowVinStartupVoltage {
		f.warn("The high VIN shutoff voltage is not greater than the low VIN startup voltage, so it will be changed to %d mV.", s.LowVinStartupVoltage+1000)
		s.HighVinShutoffVoltage = s.LowVinStartupVoltage + 1000
	}
}

func fixInput(f *fixer, s *Settings) {
	if s.InputErrorMin > s.InputErrorMax || s.InputErrorMax > maxInput {
		f.warn("The input error min and max are invalid, so they will be changed to 0 and %d.", maxInput)
		s.InputErrorMin = 0
		s.InputErrorMax = maxInput
	}

	if s.InputMin > s.InputNeutralMin || s.InputNeutralMin > s.InputNeutralMax ||
		s.InputNeutralMax > s.InputMax || s.InputMax > maxInput {
		f.warn("The input scaling values are out of order, so they will be changed to their default values.")
		def := DefaultSettings(s.Product)
		s.InputMin = def.InputMin
		s.InputNeutralMin = def.InputNeutralMin
		s.InputNeutralMax = def.InputNeutralMax
		s.InputMax = def.InputMax
	}

	if s.InputScalingDegree > 4 {
		f.warn("The input scaling degree is too high, so it will be changed to 0 (linear).")
		s.InputScalingDegree = 0
	}

	if s.InputHysteresis > maxInput {
		f.warn("The input hysteresis is too high, so it will be changed to %d.", maxInput)
		s.InputHysteresis = maxInput
	}

	if s.OutputMin > 0 {
		f.warn("The target min is greater than zero, so it will be changed to zero.")
		s.OutputMin = 0
	}
	if s.OutputMax < 0 {
		f.warn("The target max is less than zero, so it will be changed to zero.")
		s.OutputMax = 0
	}
	if s.ControlMode.IsSpeed() {
		limit := int32(s.MaxSpeed)
		if s.MaxSpeed > maxSpeedLimit {
			limit = maxSpeedLimit
		}
		if s.OutputMax > limit {
			f.warn("The target max is greater than the max speed, so it will be changed to %d.", limit)
			s.OutputMax = limit
		}
		if s.OutputMin < -limit {
			f.warn("The target min is less than the negative max speed, so it will be changed to %d.", -limit)
			s.OutputMin = -limit
		}
	}

	if s.EncoderPrescaler == 0 {
		f.warn("The encoder prescaler is zero, so it will be changed to 1.")
		s.EncoderPrescaler = 1
	}
	if s.EncoderPostscaler == 0 {
		f.warn("The encoder postscaler is zero, so it will be changed to 1.")
		s.EncoderPostscaler = 1
	}

	if s.RCConsecutiveGoodPulses == 0 {
		f.warn("The RC consecutive good pulses setting is zero, so it will be changed to 1.")
		s.RCConsecutiveGoodPulses = 1
	}
}

func fixMotor(f *fixer, s *Settings, product Product) {
	if s.MaxSpeed > maxSpeedLimit {
		f.warn("The max speed is too high, so it will be changed to %d.", maxSpeedLimit)
		s.MaxSpeed = maxSpeedLimit
	}
	if s.StartingSpeed > s.MaxSpeed {
		f.warn("The starting speed is greater than the max speed, so it will be changed to %d.", s.MaxSpeed)
		s.StartingSpeed = s.MaxSpeed
	}

	switch {
	case s.MaxAccel < minAccel:
		f.warn("The max acceleration is too low, so it will be changed to %d.", minAccel)
		s.MaxAccel = minAccel
	case s.MaxAccel > maxAccelLimit:
		f.warn("The max acceleration is too high, so it will be changed to %d.", maxAccelLimit)
		s.MaxAccel = maxAccelLimit
	}
	// Zero means "same as max accel".
	switch {
	case s.MaxDecel != 0 && s.MaxDecel < minAccel:
		f.warn("The max deceleration is too low, so it will be changed to %d.", minAccel)
		s.MaxDecel = minAccel
	case s.MaxDecel > maxAccelLimit:
		f.warn("The max deceleration is too high, so it will be changed to %d.", maxAccelLimit)
		s.MaxDecel = maxAccelLimit
	}

	if !product.StepModeAllowed(s.StepMode) {
		f.warn("The step mode is not supported by the %s, so it will be changed to full step.", product)
		s.StepMode = StepModeFull
	}
	if !product.DecayModeAllowed(s.DecayMode) {
		def := DefaultSettings(product).DecayMode
		f.warn("The decay mode is not supported by the %s, so it will be changed to the default.", product)
		s.DecayMode = def
	}

	if product != ProductUnknown {
		q := product.QuantizeCurrentLimit(s.CurrentLimit)
		if q != s.CurrentLimit {
			f.warn("The current limit will be %d mA instead of %d mA.", q, s.CurrentLimit)
			s.CurrentLimit = q
		}
	}
	if s.CurrentLimitDuringError < -1 {
		s.CurrentLimitDuringError = -1
	}
	if s.CurrentLimitDuringError > int32(s.CurrentLimit) {
		f.warn("The current limit during error is higher than the default current limit, so it will be changed to be the same.")
		s.CurrentLimitDuringError = -1
	}
}

func fixHoming(f *fixer, s *Settings) {
	if s.HomingSpeedTowards > maxSpeedLimit {
		f.warn("The homing speed towards is too high, so it will be changed to %d.", maxSpeedLimit)
		s.HomingSpeedTowards = maxSpeedLimit
	}
	if s.HomingSpeedAway > maxSpeedLimit {
		f.warn("The homing speed away is too high, so it will be changed to %d.", maxSpeedLimit)
		s.HomingSpeedAway = maxSpeedLimit
	}
	if s.AutoHomingEnabled {
		want := PinFuncLimitReverse
		if s.AutoHomingForward {
			want = PinFuncLimitForward
		}
		if !s.Pins.HasFunc(want) && !s.Pins.HasFunc(PinFuncHome) {
			f.warn("Automatic homing is enabled, but no pin is configured as a %s limit switch or homing switch, so automatic homing will be disabled.", HomeDirectionOf(s.AutoHomingForward))
			s.AutoHomingEnabled = false
		}
	}
}

// HomeDirectionOf maps the auto_homing_forward flag to a direction.
func HomeDirectionOf(forward bool) HomeDirection {
	if forward {
		return HomeForward
	}
	return HomeReverse
}

func fixAGC(f *fixer, s *Settings, product Product) {
	if !product.HasAGC() {
		s.AGCMode = AGCOff
		s.AGCBottomCurrentLimit = 0
		s.AGCCurrentBoostSteps = 0
		s.AGCFrequencyLimit = 0
		return
	}
	if s.AGCMode > AGCActiveOff {
		f.warn("The AGC mode is invalid, so it will be changed to off.")
		s.AGCMode = AGCOff
	}
	if s.AGCBottomCurrentLimit > 7 {
		f.warn("The AGC bottom current limit is invalid, so it will be changed to 0.")
		s.AGCBottomCurrentLimit = 0
	}
	if s.AGCCurrentBoostSteps > 3 {
		f.warn("The AGC current boost steps setting is invalid, so it will be changed to 0.")
		s.AGCCurrentBoostSteps = 0
	}
	if s.AGCFrequencyLimit > 3 {
		f.warn("The AGC frequency limit is invalid, so it will be changed to off.")
		s.AGCFrequencyLimit = 0
	}
}

// pinFuncAllowed lists which functions each pin can take on.
var pinFuncAllowed = map[string]func(PinFunc) bool{
	"SCL": func(fn PinFunc) bool { return fn != PinFuncSerial && fn != PinFuncRC && fn != PinFuncEncoder },
	"SDA": func(fn PinFunc) bool { return fn != PinFuncSerial && fn != PinFuncRC && fn != PinFuncEncoder },
	"TX":  func(fn PinFunc) bool { return fn != PinFuncPotPower && fn != PinFuncRC },
	"RX":  func(fn PinFunc) bool { return fn != PinFuncPotPower && fn != PinFuncRC },
	"RC": func(fn PinFunc) bool {
		return fn != PinFuncUserIO && fn != PinFuncPotPower && fn != PinFuncSerial && fn != PinFuncEncoder
	},
}

func fixPins(f *fixer, s *Settings) {
	fixPin := func(name string, p *PinSettings) {
		if p.Func > PinFuncKillSwitch || !pinFuncAllowed[name](p.Func) {
			f.warn("The %s pin cannot be used as %s, so it will be changed to default.", name, p.Func)
			p.Func = PinFuncDefault
		}
		if name == "RC" && p.AnalogEnabled {
			f.warn("The RC pin cannot be an analog input, so that feature will be disabled.")
			p.AnalogEnabled = false
		}
		if name == "RC" && p.Pullup {
			f.warn("The RC pin cannot have its pull-up enabled, so it will be disabled.")
			p.Pullup = false
		}
	}
	fixPin("SCL", &s.Pins.SCL)
	fixPin("SDA", &s.Pins.SDA)
	fixPin("TX", &s.Pins.TX)
	fixPin("RX", &s.Pins.RX)
	fixPin("RC", &s.Pins.RC)
}
